package service

import (
	"os"
	"testing"

	"nx-server/common/logger"
	infmysql "nx-server/internal/infra/mysql"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

// newMockDB 构造 sqlmock 句柄并注入全局连接，供事务类服务用例使用
func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	infmysql.UseSQLX(sqlx.NewDb(db, "mysql"))
	t.Cleanup(func() { _ = db.Close() })
	return mock
}

var accountColumns = []string{
	"account_id", "account_no", "username", "role", "balance", "dealer_id",
	"commission_rate", "rate_two_digit", "rate_one_digit", "bet_limit_single", "bet_limit_draw",
	"status", "created_at", "updated_at",
}

// accountRows 单行账户结果集（状态正常、费率与限额默认0）
func accountRows(id string, role int8, balance float64) *sqlmock.Rows {
	return sqlmock.NewRows(accountColumns).
		AddRow(id, "1234567897", "u_"+id, role, balance, "", 0.0, 0.0, 0.0, 0.0, 0.0, int8(1), int64(0), int64(0))
}
