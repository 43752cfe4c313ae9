package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareDSN(t *testing.T) {
	tests := []struct {
		name        string
		dsn         string
		development bool
		want        string
	}{
		{"dev url", "postgres://u:p@localhost:5432/db", true, "postgres://u:p@localhost:5432/db?sslmode=disable"},
		{"dev url with params", "postgres://u:p@localhost/db?connect_timeout=5", true, "postgres://u:p@localhost/db?connect_timeout=5&sslmode=disable"},
		{"dev keyword", "host=localhost dbname=db", true, "host=localhost dbname=db sslmode=disable"},
		{"dev explicit sslmode", "postgres://localhost/db?sslmode=require", true, "postgres://localhost/db?sslmode=require"},
		{"prod url", "postgresql://u:p@db.example.com/db?sslmode=require", false, "postgresql://u:p@db.example.com/db?sslmode=require&prefer_simple_protocol=true"},
		{"prod already simple", "postgres://db/x?prefer_simple_protocol=true", false, "postgres://db/x?prefer_simple_protocol=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PrepareDSN(tt.dsn, tt.development))
		})
	}
}
