package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var saleSeq atomic.Uint64

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// SaleNumber derives a sale number from the commit timestamp. The counter
// keeps numbers distinct within a process when two sales share a second;
// the random suffix separates processes.
func SaleNumber(at time.Time) string {
	seq := saleSeq.Add(1) % 10000
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("V%s-%04d%04d", at.UTC().Format("20060102150405"), seq, time.Now().UnixNano()%10000)
	}
	return fmt.Sprintf("V%s-%04d%s", at.UTC().Format("20060102150405"), seq, hex.EncodeToString(buf))
}
