package database

import "testing"

func TestDataSource(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{
			name:       "mysql default",
			opts:       Options{User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "dodo"},
			wantDriver: "mysql",
			wantDSN:    "app:pw@tcp(db:3306)/dodo?charset=utf8mb4&parseTime=true&loc=UTC",
		},
		{
			name:       "mysql without password",
			opts:       Options{Driver: "mysql", User: "app", Host: "db", Port: "3306", Name: "dodo"},
			wantDriver: "mysql",
			wantDSN:    "app@tcp(db:3306)/dodo?charset=utf8mb4&parseTime=true&loc=UTC",
		},
		{
			name:       "postgres local",
			opts:       Options{Driver: "postgres", User: "app", Pass: "pw", Host: "localhost", Port: "5432", Name: "dodo"},
			wantDriver: "pgx",
			wantDSN:    "postgres://app:pw@localhost:5432/dodo?sslmode=disable",
		},
		{
			name:       "postgres remote",
			opts:       Options{Driver: "pgx", User: "app", Host: "db.example.org", Port: "5432", Name: "dodo"},
			wantDriver: "pgx",
			wantDSN:    "postgres://app@db.example.org:5432/dodo?sslmode=require",
		},
		{
			name:    "unknown",
			opts:    Options{Driver: "oracle"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := dataSource(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("dataSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if driver != tt.wantDriver {
				t.Errorf("driver = %q, want %q", driver, tt.wantDriver)
			}
			if dsn != tt.wantDSN {
				t.Errorf("dsn = %q, want %q", dsn, tt.wantDSN)
			}
		})
	}
}
