package common

import (
	"fmt"
	"reflect"

	"nx-server/common/logger"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	dialect = g.Dialect("mysql")
)

// QueryArg 列表查询参数（历史记录/审批列表等只读投影使用）
type QueryArg struct {
	Db      *sqlx.DB                // db connection
	Table   string                  // table
	Fields  []interface{}           // query fields
	Ex      []exp.Expression        // where conditions
	Order   []exp.OrderedExpression // order conditions
	GroupBy []interface{}           // group by fields
	Offset  uint                    // offset
	Limit   uint                    // limit
}

// EnumFields 通过 db tag 反射出结构体的查询字段列表
func EnumFields(obj interface{}) []interface{} {

	rt := reflect.TypeOf(obj)
	if rt.Kind() != reflect.Struct {
		return nil
	}

	var fields []interface{}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if field := f.Tag.Get("db"); field != "" && field != "-" {
			fields = append(fields, field)
		}
	}

	return fields
}

// SelectOne 查询一条记录
func SelectOne(data interface{}, db *sqlx.DB, table string, fields []interface{}, ex ...exp.Expression) error {

	query, args, _ := dialect.Select(fields...).From(table).Where(ex...).Limit(1).Prepared(true).ToSQL()
	err := db.Get(data, query, args...)
	if err != nil {
		logger.Warn("select one failed", zap.String("table", table), zap.Error(err))
	}

	return err
}

// SelectAll 按 QueryArg 组合条件查询列表
func SelectAll(data interface{}, args QueryArg) error {

	if args.Db == nil {
		return fmt.Errorf("invalid db")
	}
	if args.Table == "" {
		return fmt.Errorf("invalid table")
	}
	if len(args.Fields) == 0 {
		return fmt.Errorf("invalid fields")
	}

	ds := dialect.Select(args.Fields...).From(args.Table)

	if len(args.Ex) > 0 {
		ds = ds.Where(args.Ex...)
	}

	if len(args.GroupBy) > 0 {
		ds = ds.GroupBy(args.GroupBy...)
	}

	if len(args.Order) > 0 {
		ds = ds.Order(args.Order...)
	}

	if args.Offset > 0 {
		ds = ds.Offset(args.Offset)
	}

	if args.Limit > 0 {
		ds = ds.Limit(args.Limit)
	}

	query, qargs, _ := ds.Prepared(true).ToSQL()
	err := args.Db.Select(data, query, qargs...)
	if err != nil {
		logger.Warn("select all failed", zap.String("table", args.Table), zap.Error(err))
	}

	return err
}

// Count 统计表内满足条件的记录数
func Count(db *sqlx.DB, table string, ex ...exp.Expression) (int64, error) {
	query, qargs, _ := dialect.Select(g.COUNT("*")).From(table).Where(ex...).Prepared(true).ToSQL()
	var n int64
	if err := db.Get(&n, query, qargs...); err != nil {
		logger.Warn("count failed", zap.String("table", table), zap.Error(err))
		return 0, err
	}
	return n, nil
}
