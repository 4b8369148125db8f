package store

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"vivero/backend/internal/domain"
)

// DemoProducts is the catalog loaded into empty stores for local runs.
// Prices are whole guaraníes.
func DemoProducts() []domain.Product {
	return []domain.Product{
		{ID: "PLT-HELECHO", Name: "Helecho Boston", Category: "plantas", UnitPrice: 35000, Stock: 40, Active: true},
		{ID: "PLT-POTUS", Name: "Potus en maceta 14", Category: "plantas", UnitPrice: 25000, Stock: 60, Active: true},
		{ID: "PLT-CACTUS", Name: "Cactus San Pedro", Category: "plantas", UnitPrice: 18000, Stock: 80, Active: true},
		{ID: "PLT-ORQUIDEA", Name: "Orquídea Phalaenopsis", Category: "plantas", UnitPrice: 120000, Stock: 12, Active: true},
		{ID: "PLT-LAVANDA", Name: "Lavanda", Category: "aromaticas", UnitPrice: 22000, Stock: 45, Active: true},
		{ID: "PLT-ROMERO", Name: "Romero", Category: "aromaticas", UnitPrice: 15000, Stock: 50, Active: true},
		{ID: "PLT-LAPACHO", Name: "Plantín de lapacho", Category: "arboles", UnitPrice: 45000, Stock: 20, Active: true},
		{ID: "SUP-TIERRA-10", Name: "Tierra fértil 10kg", Category: "insumos", UnitPrice: 28000, Stock: 100, Active: true},
		{ID: "SUP-MACETA-20", Name: "Maceta plástica 20cm", Category: "insumos", UnitPrice: 12000, Stock: 150, Active: true},
		{ID: "SUP-FERTIL-1", Name: "Fertilizante NPK 1kg", Category: "insumos", UnitPrice: 32000, Stock: 35, Active: true},
	}
}

// DemoUsers builds the initial accounts for dev/demo mode. Passwords come
// from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD, with dev defaults.
func DemoUsers() ([]domain.UserAccount, error) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := make([]domain.UserAccount, 0, 2)
	for _, u := range []struct {
		username    string
		displayName string
		password    string
		role        string
	}{
		{"admin", "Administración", adminPwd, domain.RoleAdmin},
		{"cajero", "Caja principal", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		users = append(users, domain.UserAccount{
			Username:    u.username,
			DisplayName: u.displayName,
			Password:    string(hash),
			Role:        u.role,
			Active:      true,
			CreatedAt:   now,
		})
	}
	return users, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
