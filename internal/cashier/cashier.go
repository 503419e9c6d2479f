// SPDX-License-Identifier: MIT

// Package cashier records receipts for sales and refunds. Each receipt is
// written atomically to its own file so a crash can never leave a torn
// record behind.
package cashier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvend/vmcd/internal/log"
)

// Receipt kinds.
const (
	KindSale   = "sale"
	KindRefund = "refund"
)

// Receipt is one bookkeeping record.
type Receipt struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	ItemID    string    `json:"item_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Cashier writes receipts under a directory.
type Cashier struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a cashier writing receipts under dir/receipts.
func New(dir string) (*Cashier, error) {
	receiptDir := filepath.Join(dir, "receipts")
	if err := os.MkdirAll(receiptDir, 0o750); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	return &Cashier{
		dir:    receiptDir,
		now:    time.Now,
		logger: log.WithComponent("cashier"),
	}, nil
}

// CreateReceipt records a sale of amount for itemID.
func (c *Cashier) CreateReceipt(amount int64, itemID string) (Receipt, error) {
	return c.write(Receipt{Kind: KindSale, Amount: amount, ItemID: itemID})
}

// CreateRefund records a refund payout of amount.
func (c *Cashier) CreateRefund(amount int64) (Receipt, error) {
	return c.write(Receipt{Kind: KindRefund, Amount: amount})
}

// List returns all recorded receipts, oldest first.
func (c *Cashier) List() ([]Receipt, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read receipt dir: %w", err)
	}
	receipts := make([]Receipt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(c.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var r Receipt
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("corrupt receipt %s: %w", entry.Name(), err)
		}
		receipts = append(receipts, r)
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.Before(receipts[j].CreatedAt)
	})
	return receipts, nil
}

func (c *Cashier) write(r Receipt) (Receipt, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = c.now().UTC()

	raw, err := json.Marshal(r)
	if err != nil {
		return Receipt{}, err
	}

	// File name sorts chronologically; uuid suffix keeps it unique.
	name := fmt.Sprintf("%s-%s.json", r.CreatedAt.Format("20060102T150405.000000000"), r.ID)
	path := filepath.Join(c.dir, name)
	if err := renameio.WriteFile(path, raw, 0o640); err != nil {
		return Receipt{}, fmt.Errorf("write receipt: %w", err)
	}

	c.logger.Info().
		Str(log.FieldEvent, "cashier.receipt").
		Str(log.FieldReceiptID, r.ID).
		Str("kind", r.Kind).
		Int64(log.FieldAmount, r.Amount).
		Msg("receipt recorded")
	return r, nil
}
