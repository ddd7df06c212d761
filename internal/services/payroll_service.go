package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/securebank/backend/internal/models"
)

var (
	ErrNotEmployeeAccount     = errors.New("account must be of type Employee")
	ErrPayrollAlreadyAssigned = errors.New("payroll already assigned for this account")
	ErrInvalidPayDay          = errors.New("pay day of month must be between 1 and 28")
)

// payDayCeiling keeps pay days representable in every month.
const payDayCeiling = 28

// PayrollService assigns salary profiles to employee accounts and runs the
// periodic disbursement. Each profile's deposit is independent: one failure
// is logged and retried next cycle, never aborting the rest of the batch.
type PayrollService struct {
	db       *sql.DB
	ledger   *LedgerService
	currency string
	interval time.Duration
}

func NewPayrollService(db *sql.DB, ledger *LedgerService, currency string, interval time.Duration) *PayrollService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &PayrollService{db: db, ledger: ledger, currency: currency, interval: interval}
}

// AssignPayroll creates a salary profile for an employee account.
func (s *PayrollService) AssignPayroll(ctx context.Context, accountID uuid.UUID, monthlySalary decimal.Decimal, payDayOfMonth int) (*models.PayrollProfile, error) {
	if payDayOfMonth < 1 || payDayOfMonth > payDayCeiling {
		return nil, ErrInvalidPayDay
	}

	var accType models.AccountType
	err := s.db.QueryRowContext(ctx,
		`SELECT type FROM bank_accounts WHERE id = $1 AND deleted_at IS NULL`, accountID,
	).Scan(&accType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if accType != models.AccountTypeEmployee {
		return nil, ErrNotEmployeeAccount
	}

	profile := &models.PayrollProfile{
		ID:            uuid.New(),
		BankAccountID: accountID,
		MonthlySalary: monthlySalary,
		PayDayOfMonth: payDayOfMonth,
		NextRunAt:     nextPayDate(time.Now().UTC(), payDayOfMonth),
		IsActive:      true,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employee_payroll_profiles
			(id, bank_account_id, monthly_salary, pay_day_of_month, next_run_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		profile.ID, profile.BankAccountID, profile.MonthlySalary,
		profile.PayDayOfMonth, profile.NextRunAt, profile.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrPayrollAlreadyAssigned
		}
		return nil, err
	}
	return profile, nil
}

// Profiles lists all payroll profiles.
func (s *PayrollService) Profiles(ctx context.Context) ([]*models.PayrollProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_account_id, monthly_salary, pay_day_of_month, next_run_at, is_active
		FROM employee_payroll_profiles
		ORDER BY next_run_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.PayrollProfile
	for rows.Next() {
		var p models.PayrollProfile
		if err := rows.Scan(&p.ID, &p.BankAccountID, &p.MonthlySalary,
			&p.PayDayOfMonth, &p.NextRunAt, &p.IsActive); err != nil {
			return nil, err
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// duePayrollRow is a profile joined with its account's IBAN for deposit.
type duePayrollRow struct {
	ProfileID     uuid.UUID
	AccountID     uuid.UUID
	IBAN          string
	MonthlySalary decimal.Decimal
	PayDayOfMonth int
}

// RunOnce executes one payroll pass: every active profile whose pay day
// matches today (clamped to 28) and whose next run is due gets one deposit.
// Success advances next_run_at to the next month's pay date; a typed transfer
// failure leaves it unchanged so the employee is retried next cycle.
func (s *PayrollService) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	day := now.Day()
	if day > payDayCeiling {
		day = payDayCeiling
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.bank_account_id, a.iban, p.monthly_salary, p.pay_day_of_month
		FROM employee_payroll_profiles p
		JOIN bank_accounts a ON a.id = p.bank_account_id
		WHERE p.is_active = TRUE AND p.pay_day_of_month = $1 AND p.next_run_at <= $2`,
		day, now)
	if err != nil {
		return err
	}

	var due []duePayrollRow
	for rows.Next() {
		var r duePayrollRow
		if err := rows.Scan(&r.ProfileID, &r.AccountID, &r.IBAN, &r.MonthlySalary, &r.PayDayOfMonth); err != nil {
			rows.Close()
			return err
		}
		due = append(due, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var paid int
	for _, r := range due {
		_, err := s.ledger.Deposit(ctx, r.IBAN, r.MonthlySalary, s.currency)
		if err != nil {
			if te, ok := AsTransferError(err); ok {
				logrus.WithFields(logrus.Fields{
					"account_id": r.AccountID,
					"error":      te.Code,
				}).Warn("payroll deposit rejected, will retry next cycle")
				continue
			}
			logrus.WithError(err).WithField("account_id", r.AccountID).Error("payroll deposit failed")
			continue
		}

		next := nextPayDate(now.AddDate(0, 1, 0), r.PayDayOfMonth)
		if _, err := s.db.ExecContext(ctx,
			`UPDATE employee_payroll_profiles SET next_run_at = $1 WHERE id = $2`,
			next, r.ProfileID); err != nil {
			logrus.WithError(err).WithField("profile_id", r.ProfileID).Error("advancing payroll schedule failed")
			continue
		}
		paid++
	}

	if paid > 0 {
		logrus.WithField("count", paid).Info("payroll processed")
	}
	return nil
}

// Run drives RunOnce on a fixed cadence until the context is cancelled.
func (s *PayrollService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			logrus.WithError(err).Error("payroll run failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// nextPayDate returns the first pay date strictly after from, with the day
// clamped to the target month's length.
func nextPayDate(from time.Time, payDay int) time.Time {
	d := time.Date(from.Year(), from.Month(), clampDay(from.Year(), from.Month(), payDay), 0, 0, 0, 0, time.UTC)
	if !d.After(from) {
		n := d.AddDate(0, 1, 0)
		d = time.Date(n.Year(), n.Month(), clampDay(n.Year(), n.Month(), payDay), 0, 0, 0, 0, time.UTC)
	}
	return d
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}
