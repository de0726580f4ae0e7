package common

import (
	"context"
	"os"
	"strm/src/types"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("could not open sqlmock: %s", err)
	}
	database, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("could not open gorm: %s", err)
	}
	return database, mock
}

func statusColumns() []string {
	return []string{"ticket_id", "event_id", "is_used", "is_listed", "is_sold"}
}

func TestCommitUseFreshTicket(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, false, false, false))
	mock.ExpectExec(`UPDATE "ticket_statuses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "gate_scans"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status, alreadyUsed, err := manager.CommitUse(context.Background(), "t-1", 42)
	assert.Nil(t, err)
	assert.False(t, alreadyUsed)
	assert.True(t, status.IsUsed)
	assert.NotNil(t, status.UsedAt)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitUseIsIdempotent(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, true, false, false))
	mock.ExpectCommit()

	status, alreadyUsed, err := manager.CommitUse(context.Background(), "t-1", 42)
	assert.Nil(t, err)
	assert.True(t, alreadyUsed)
	assert.True(t, status.IsUsed)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitUseUnknownTicket(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()))
	mock.ExpectRollback()

	_, _, err := manager.CommitUse(context.Background(), "missing", 42)
	assert.ErrorIs(t, err, types.TICKET_NOT_FOUND)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitListRejectsListedTicket(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, false, true, false))
	mock.ExpectRollback()

	_, err := manager.CommitList(context.Background(), "t-1", 3, 11)
	assert.ErrorIs(t, err, types.ALREADY_LISTED)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitListLosesRace(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, false, false, false))
	mock.ExpectExec(`UPDATE "ticket_statuses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, false, true, false))
	mock.ExpectRollback()

	_, err := manager.CommitList(context.Background(), "t-1", 3, 11)
	assert.ErrorIs(t, err, types.ALREADY_LISTED)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitListFreshTicket(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, false, false, false))
	mock.ExpectExec(`UPDATE "ticket_statuses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status, err := manager.CommitList(context.Background(), "t-1", 3, 11)
	assert.Nil(t, err)
	assert.True(t, status.IsListed)
	assert.NotNil(t, status.ListedBy)
	assert.Equal(t, uint(11), *status.ListedBy)
	assert.NotNil(t, status.ListedAt)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitListByRecordedBuyerResetsSoldFlags(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows([]string{"ticket_id", "event_id", "is_used", "is_listed", "is_sold", "sold_to"}).
			AddRow("t-1", 7, false, false, true, 12))
	mock.ExpectExec(`UPDATE "ticket_statuses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status, err := manager.CommitList(context.Background(), "t-1", 4, 12)
	assert.Nil(t, err)
	assert.True(t, status.IsListed)
	assert.False(t, status.IsSold)
	assert.Nil(t, status.SoldTo)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitSaleCompletesTransfer(t *testing.T) {
	os.Unsetenv("KAFKA_BROKER")
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows([]string{"ticket_id", "event_id", "is_used", "is_listed", "is_sold", "listed_by"}).
			AddRow("t-1", 7, false, true, false, 11))
	mock.ExpectQuery(`SELECT (.+) FROM "listings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_id", "event_id", "seller_id", "status"}).
			AddRow(3, "t-1", 7, 11, "open"))
	mock.ExpectExec(`UPDATE "ticket_statuses" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "listings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "ticket_ownership_transfers"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status, transfer, err := manager.CommitSale(context.Background(), "t-1", 12, 3)
	assert.Nil(t, err)
	assert.False(t, status.IsListed)
	assert.Nil(t, status.ListedBy)
	assert.True(t, status.IsSold)
	assert.NotNil(t, status.SoldTo)
	assert.Equal(t, uint(12), *status.SoldTo)
	assert.NotNil(t, status.SoldAt)

	assert.NotNil(t, transfer)
	assert.Equal(t, "t-1", transfer.TicketID)
	assert.Equal(t, uint(11), transfer.FromUserID)
	assert.Equal(t, uint(12), transfer.ToUserID)
	assert.Equal(t, uint(3), transfer.ListingID)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitSaleRequiresActiveListing(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, false, false, false))
	mock.ExpectRollback()

	_, _, err := manager.CommitSale(context.Background(), "t-1", 12, 3)
	assert.ErrorIs(t, err, types.TICKET_NOT_FOUND)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestCommitSaleRejectsSoldTicket(t *testing.T) {
	database, mock := newMockDB(t)
	manager := NewTransferManager(database)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "ticket_statuses"`).
		WillReturnRows(sqlmock.NewRows(statusColumns()).
			AddRow("t-1", 7, false, false, true))
	mock.ExpectRollback()

	_, _, err := manager.CommitSale(context.Background(), "t-1", 12, 3)
	assert.ErrorIs(t, err, types.ALREADY_SOLD)
	assert.Nil(t, mock.ExpectationsWereMet())
}
