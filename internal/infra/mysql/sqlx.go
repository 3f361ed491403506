package mysql

import (
	"github.com/jmoiron/sqlx"
)

var sqlxDB *sqlx.DB

// UseSQLX 直接注入 sqlx 句柄（测试注入或自定义初始化场景）
func UseSQLX(d *sqlx.DB) {
	sqlxDB = d
}

// SQLX 返回全局 sqlx 句柄；未注入时基于 DB() 惰性构建（启动阶段单线程完成）
func SQLX() *sqlx.DB {
	if sqlxDB == nil && DB() != nil {
		sqlxDB = sqlx.NewDb(DB(), "mysql")
	}
	return sqlxDB
}
