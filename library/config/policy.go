package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	roleProfessor = "Profesor"

	fallbackLoanDays = 3
)

// Policy holds the circulation rules shared by the fine, loan and reservation services.
type Policy struct {
	Loans        Loans        `yaml:"loans"`
	Fines        Fines        `yaml:"fines"`
	Reservations Reservations `yaml:"reservations"`
	Scheduler    Scheduler    `yaml:"scheduler"`
}

type Loans struct {
	StudentDays       int `yaml:"studentDays" envconfig:"LOAN_STUDENT_DAYS"`
	ProfessorDays     int `yaml:"professorDays" envconfig:"LOAN_PROFESSOR_DAYS"`
	MaxStudentLoans   int `yaml:"maxStudentLoans" envconfig:"LOAN_MAX_STUDENT"`
	MaxProfessorLoans int `yaml:"maxProfessorLoans" envconfig:"LOAN_MAX_PROFESSOR"`
	MaxRenewals       int `yaml:"maxRenewals" envconfig:"LOAN_MAX_RENEWALS"`
	MaxLoanDays       int `yaml:"maxLoanDays" envconfig:"LOAN_MAX_DAYS"`
	MaxRenewDays      int `yaml:"maxRenewDays" envconfig:"LOAN_MAX_RENEW_DAYS"`
}

type Fines struct {
	DailyRate decimal.Decimal `yaml:"dailyRate" envconfig:"FINE_DAILY_RATE"`
	// MaxAmount caps a generated fine; zero disables the cap.
	MaxAmount decimal.Decimal `yaml:"maxAmount" envconfig:"FINE_MAX_AMOUNT"`
}

type Reservations struct {
	PickupDays int `yaml:"pickupDays" envconfig:"RESERVATION_PICKUP_DAYS"`
}

type Scheduler struct {
	Enabled bool          `yaml:"enabled" envconfig:"SCHEDULER_ENABLED"`
	RunAt   string        `yaml:"runAt" envconfig:"SCHEDULER_RUN_AT"`
	Tick    time.Duration `yaml:"tick" envconfig:"SCHEDULER_TICK"`
}

func DefaultPolicy() Policy {
	return Policy{
		Loans: Loans{
			StudentDays:       7,
			ProfessorDays:     14,
			MaxStudentLoans:   3,
			MaxProfessorLoans: 5,
			MaxRenewals:       2,
			MaxLoanDays:       30,
			MaxRenewDays:      15,
		},
		Fines: Fines{
			DailyRate: decimal.RequireFromString("2.00"),
			MaxAmount: decimal.RequireFromString("50.00"),
		},
		Reservations: Reservations{
			PickupDays: 2,
		},
		Scheduler: Scheduler{
			Enabled: true,
			RunAt:   "02:00",
			Tick:    time.Minute,
		},
	}
}

func (p Policy) Validate() error {
	if !p.Fines.DailyRate.IsPositive() {
		return errors.New("policy: fines.dailyRate must be positive")
	}
	if p.Fines.MaxAmount.IsNegative() {
		return errors.New("policy: fines.maxAmount must not be negative")
	}
	if p.Loans.MaxLoanDays <= 0 || p.Loans.MaxRenewDays <= 0 {
		return errors.New("policy: loan day limits must be positive")
	}
	if p.Reservations.PickupDays <= 0 {
		return errors.New("policy: reservations.pickupDays must be positive")
	}
	if _, err := time.Parse("15:04", p.Scheduler.RunAt); err != nil {
		return errors.Wrap(err, "policy: scheduler.runAt")
	}
	return nil
}

// DaysForRole is the default loan length for a borrower role.
func (l Loans) DaysForRole(role string) int {
	days := l.StudentDays
	if role == roleProfessor {
		days = l.ProfessorDays
	}
	if days <= 0 {
		return fallbackLoanDays
	}
	return days
}

func (l Loans) MaxLoansForRole(role string) int {
	if role == roleProfessor {
		return l.MaxProfessorLoans
	}
	return l.MaxStudentLoans
}
