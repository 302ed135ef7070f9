package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/banking-core/internal/domain"
)

var accountSeq atomic.Int64

// NextAccountNumber returns a number that does not collide with numbers the
// allocator hands out in the same test database.
func NextAccountNumber() string {
	return fmt.Sprintf("T%09d", accountSeq.Add(1))
}

func SeedAccount(t *testing.T, db *sql.DB, status domain.AccountStatus, balance string) *domain.Account {
	t.Helper()

	now := time.Now().UTC()
	a := &domain.Account{
		ID:               uuid.New(),
		AccountNumber:    NextAccountNumber(),
		OwnerUserID:      uuid.New(),
		AccountType:      domain.AccountTypeSavings,
		Status:           status,
		AvailableBalance: decimal.RequireFromString(balance),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, account_number, owner_user_id, account_type, status,
			available_balance, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.AccountNumber, a.OwnerUserID, a.AccountType, a.Status,
		a.AvailableBalance, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", a.AccountNumber, err)
	}
	return a
}

func GetAccountBalance(t *testing.T, db *sql.DB, number string) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT available_balance FROM accounts WHERE account_number = $1`, number).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", number, err)
	}
	return balance
}

func CountTransactions(t *testing.T, db *sql.DB, referenceID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE reference_id = $1`, referenceID).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for reference %s: %v", referenceID, err)
	}
	return count
}

func CountTransfers(t *testing.T, db *sql.DB, reference string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transfers WHERE reference = $1`, reference).Scan(&count)
	if err != nil {
		t.Fatalf("count transfers for reference %s: %v", reference, err)
	}
	return count
}

func CountMutations(t *testing.T, db *sql.DB, number, reference string) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM account_mutations WHERE account_number = $1 AND reference = $2`,
		number, reference,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count mutations for %s/%s: %v", number, reference, err)
	}
	return count
}

// OutboxEvents returns the outbox rows queued for an aggregate, oldest first.
func OutboxEvents(t *testing.T, db *sql.DB, aggregateID string) []domain.OutboxEvent {
	t.Helper()

	rows, err := db.Query(
		`SELECT id, aggregate_id, event_type, payload, status, attempts, created_at, published_at
		FROM outbox_events WHERE aggregate_id = $1 ORDER BY created_at`,
		aggregateID,
	)
	if err != nil {
		t.Fatalf("query outbox events for %s: %v", aggregateID, err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload,
			&e.Status, &e.Attempts, &e.CreatedAt, &e.PublishedAt); err != nil {
			t.Fatalf("scan outbox event: %v", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("outbox rows: %v", err)
	}
	return events
}
