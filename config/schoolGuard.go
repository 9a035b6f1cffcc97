package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mmdatafocus/mdm_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

var ErrCrossSchoolWrite = errors.New("row belongs to another school")

// SchoolGuardPlugin confines statements on tables with a school_id column to
// the school in the request scope. Reads, updates and deletes get a school_id
// filter unless one is already present; creates are rejected when a row names
// a different school.
//
// Raw SQL is not inspected. Contexts without a school (ops tools, migrations)
// pass through unscoped.
type SchoolGuardPlugin struct{}

func NewSchoolGuardPlugin() *SchoolGuardPlugin { return &SchoolGuardPlugin{} }

func (p *SchoolGuardPlugin) Name() string { return "school_guard" }

func (p *SchoolGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("school_guard:query", scopeToSchool),
		cb.Row().Before("gorm:row").Register("school_guard:row", scopeToSchool),
		cb.Update().Before("gorm:update").Register("school_guard:update", scopeToSchool),
		cb.Delete().Before("gorm:delete").Register("school_guard:delete", scopeToSchool),
		cb.Create().Before("gorm:create").Register("school_guard:create", rejectForeignRows),
	)
}

// schoolField returns the statement's school_id field and the scoped school.
func schoolField(db *gorm.DB) (*schema.Field, string, bool) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil || db.Statement.Schema == nil {
		return nil, "", false
	}
	schoolID, ok := appctx.SchoolId(db.Statement.Context)
	if !ok {
		return nil, "", false
	}
	field := db.Statement.Schema.LookUpField("school_id")
	if field == nil {
		return nil, "", false
	}
	return field, schoolID, true
}

func scopeToSchool(db *gorm.DB) {
	_, schoolID, ok := schoolField(db)
	if !ok || filtersOnSchool(db.Statement.Clauses["WHERE"]) {
		return
	}
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: db.Statement.Table, Name: "school_id"}, Value: schoolID},
	}})
}

func rejectForeignRows(db *gorm.DB) {
	field, schoolID, ok := schoolField(db)
	if !ok {
		return
	}
	rv := reflect.Indirect(db.Statement.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			checkRowSchool(db, field, reflect.Indirect(rv.Index(i)), schoolID)
		}
	case reflect.Struct:
		checkRowSchool(db, field, rv, schoolID)
	}
}

func checkRowSchool(db *gorm.DB, field *schema.Field, row reflect.Value, schoolID string) {
	v, zero := field.ValueOf(db.Statement.Context, row)
	if zero {
		return
	}
	if s, ok := v.(string); ok && s != schoolID {
		_ = db.AddError(fmt.Errorf("%w: %s (scope %s)", ErrCrossSchoolWrite, s, schoolID))
	}
}

func filtersOnSchool(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprNamesSchool(e) {
			return true
		}
	}
	return false
}

func exprNamesSchool(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return isSchoolColumn(v.Column)
	case clause.IN:
		return isSchoolColumn(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprNamesSchool(x) {
				return true
			}
		}
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), "school_id")
	}
	return false
}

func isSchoolColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "school_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "school_id")
	}
	return false
}
