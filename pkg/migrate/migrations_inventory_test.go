package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/courierbot-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_orders")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"id BIGSERIAL PRIMARY KEY",
		"CONSTRAINT orders_detailed_status_check",
		"'waiting_payment', 'searching_courier', 'courier_on_way'",
		"CONSTRAINT orders_bag_count_check CHECK (bag_count BETWEEN 1 AND 100)",
		"CREATE TABLE IF NOT EXISTS courier_stats",
		"CONSTRAINT ratings_order_id_key UNIQUE (order_id)",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestChatAndSubscriptionMigrations(t *testing.T) {
	chat := readMigration(t, "create_order_chat")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS chat_sessions",
		"telegram_id BIGINT PRIMARY KEY",
		"CREATE TABLE IF NOT EXISTS order_chat_archive",
		"char_length(message) BETWEEN 1 AND 4000",
	} {
		if !strings.Contains(chat, sub) {
			t.Errorf("chat migration missing %q", sub)
		}
	}

	subs := readMigration(t, "create_subscriptions")
	for _, sub := range []string{
		"usage_version BIGINT NOT NULL DEFAULT 0",
		"CHECK (type IN ('daily', 'alternate_day'))",
	} {
		if !strings.Contains(subs, sub) {
			t.Errorf("subscription migration missing %q", sub)
		}
	}

	apps := readMigration(t, "create_courier_applications")
	if !strings.Contains(apps, "WHERE status = 'pending'") {
		t.Errorf("applications migration should enforce a single pending application")
	}
}
