// Package dbtest opens isolated in-memory sqlite databases carrying the
// payments schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  customer_name TEXT NOT NULL,
  email TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  package TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  transaction_ref TEXT,
  processor_session_id TEXT UNIQUE,
  payment_date DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS checkout_contexts (
  token TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  payment_id TEXT NOT NULL,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  amount TEXT NOT NULL,
  package TEXT NOT NULL,
  booking_data TEXT,
  cart_items TEXT,
  status TEXT NOT NULL DEFAULT 'init',
  forward_state TEXT NOT NULL DEFAULT 'none',
  forward_error TEXT,
  forward_attempt_at DATETIME,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  requester_email TEXT NOT NULL,
  amount TEXT NOT NULL,
  reason TEXT NOT NULL,
  note TEXT,
  status TEXT NOT NULL DEFAULT 'requested',
  policy_window_days INTEGER NOT NULL DEFAULT 30,
  processor_ref TEXT,
  decided_by TEXT,
  decided_at DATETIME,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS refunds_one_open_per_payment
  ON refunds (payment_id)
  WHERE status IN ('requested', 'processing', 'approved');
`

// Open returns a fresh database with the payments, checkout_contexts and
// refunds tables. Each call gets its own named in-memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(schema).Error)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// shared-cache sqlite reports table locks under concurrent writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
