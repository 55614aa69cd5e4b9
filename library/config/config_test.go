package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIBRARY_POLICY_FILE", "")
	cfg, err := config.Load(config.WithLogLevel(zapcore.WarnLevel))
	require.NoError(t, err)

	require.Equal(t, zapcore.WarnLevel, cfg.Log.LogLevel)
	require.True(t, cfg.Policy.Fines.DailyRate.Equal(decimal.RequireFromString("2.00")))
	require.Equal(t, 7, cfg.Policy.Loans.DaysForRole("Estudiante"))
	require.Equal(t, 14, cfg.Policy.Loans.DaysForRole("Profesor"))
	require.Equal(t, 2, cfg.Policy.Reservations.PickupDays)
}

func TestLoad_PolicyFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
loans:
  studentDays: 10
  maxRenewals: 4
fines:
  dailyRate: 2.50
reservations:
  pickupDays: 3
`), 0o600))

	t.Setenv("LIBRARY_POLICY_FILE", path)
	t.Setenv("LOAN_PROFESSOR_DAYS", "21")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.True(t, cfg.Policy.Fines.DailyRate.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, 10, cfg.Policy.Loans.StudentDays)
	require.Equal(t, 4, cfg.Policy.Loans.MaxRenewals)
	require.Equal(t, 21, cfg.Policy.Loans.ProfessorDays)
	require.Equal(t, 3, cfg.Policy.Reservations.PickupDays)
	// untouched keys keep their defaults
	require.Equal(t, 30, cfg.Policy.Loans.MaxLoanDays)
}

func TestLoad_InvalidPolicy(t *testing.T) {
	t.Setenv("LIBRARY_POLICY_FILE", "")
	t.Setenv("FINE_DAILY_RATE", "0")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoans_DaysForRole(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		loans config.Loans
		role  string
		want  int
	}{
		{name: "student", loans: config.Loans{StudentDays: 7, ProfessorDays: 14}, role: "Estudiante", want: 7},
		{name: "professor", loans: config.Loans{StudentDays: 7, ProfessorDays: 14}, role: "Profesor", want: 14},
		{name: "unknown role uses student days", loans: config.Loans{StudentDays: 5, ProfessorDays: 14}, role: "", want: 5},
		{name: "non positive falls back", loans: config.Loans{StudentDays: 0, ProfessorDays: -1}, role: "Profesor", want: 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.loans.DaysForRole(tt.role))
		})
	}
}
