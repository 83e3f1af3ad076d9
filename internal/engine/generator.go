package engine

import (
	"fmt"
	"strings"
	"time"

	"db-merge/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
)

// Generator produces fake record batches shaped by a table descriptor.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a Generator; seed 0 picks a random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// FakeBatch returns n records for table. Auto-increment columns are left out
// so storage assigns them; primary key and unique columns get values that
// are distinct within the batch.
func (g *Generator) FakeBatch(table *schema.Table, n int) []Record {
	batch := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec := make(Record, len(table.Columns))
		for _, col := range table.Columns {
			if col.IsAutoInc {
				continue
			}
			rec[col.Name] = g.GenerateValue(col, i+1)
		}
		batch = append(batch, rec)
	}
	return batch
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// GenerateValue generates a random value based on column definition.
// index makes key and unique columns distinct across a batch.
func (g *Generator) GenerateValue(col *schema.Column, index int) interface{} {
	dataType := strings.ToLower(col.Kind)
	if dataType == "" {
		dataType = strings.ToLower(col.DataType)
	}
	colName := strings.ToLower(col.Name)
	distinct := col.IsPK || col.IsUnique

	// 1. String types, by column name
	if strings.Contains(dataType, "char") || strings.Contains(dataType, "text") ||
		strings.Contains(dataType, "string") || strings.Contains(dataType, "clob") {
		if distinct {
			return truncate(fmt.Sprintf("%d-%s", index, g.faker.Word()), col.Length)
		}
		switch {
		case strings.Contains(colName, "email"):
			return truncate(g.faker.Email(), col.Length)
		case strings.Contains(colName, "phone"):
			return truncate(g.faker.Phone(), col.Length)
		case strings.Contains(colName, "name") || strings.Contains(colName, "first") || strings.Contains(colName, "last"):
			return truncate(g.faker.Name(), col.Length)
		case strings.Contains(colName, "address") || strings.Contains(colName, "street"):
			return truncate(g.faker.Street(), col.Length)
		case strings.Contains(colName, "city"):
			return truncate(g.faker.City(), col.Length)
		case strings.Contains(colName, "country"):
			return truncate(g.faker.Country(), col.Length)
		case strings.Contains(colName, "zip") || strings.Contains(colName, "postal"):
			return truncate(g.faker.Zip(), col.Length)
		case col.Length > 0 && col.Length < 20:
			return truncate(g.faker.Word(), col.Length)
		default:
			return truncate(g.faker.Sentence(5), col.Length)
		}
	}

	// 2. Date/time types, formatted for driver portability
	if strings.Contains(dataType, "date") || strings.Contains(dataType, "time") {
		val := g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now())
		switch dataType {
		case "date":
			return val.Format("2006-01-02")
		case "time":
			return val.Format("15:04:05")
		default:
			return val.Format("2006-01-02 15:04:05")
		}
	}

	// 3. Boolean types
	if strings.Contains(dataType, "bool") || dataType == "bit" {
		return g.faker.Bool()
	}

	// 4. Integer types
	if strings.Contains(dataType, "int") || strings.Contains(dataType, "number") {
		if distinct {
			return index
		}
		if strings.Contains(dataType, "tinyint") {
			return g.faker.Number(0, 127)
		}
		if strings.Contains(dataType, "smallint") {
			return g.faker.Number(1, 30000)
		}
		// Respect column length (precision) if available
		maxVal := 50000
		if col.Length > 0 && col.Length < 10 {
			limit := 1
			for i := 0; i < col.Length; i++ {
				limit *= 10
			}
			if limit-1 < maxVal {
				maxVal = limit - 1
			}
			if maxVal < 1 {
				maxVal = 9
			}
		}
		return g.faker.Number(1, maxVal)
	}

	if strings.Contains(dataType, "decimal") || strings.Contains(dataType, "numeric") ||
		strings.Contains(dataType, "float") || strings.Contains(dataType, "double") ||
		strings.Contains(dataType, "real") {
		return g.faker.Price(0.99, 99.99)
	}

	// 5. Binary types
	if strings.Contains(dataType, "binary") || strings.Contains(dataType, "blob") || strings.Contains(dataType, "bytea") {
		return []byte(g.faker.Word())
	}

	if col.IsNullable {
		return nil
	}
	return g.faker.Word()
}
