package config

import (
	"time"

	"github.com/spf13/viper"
)

// BankConfig carries institution-level policy for onboarding and payroll.
type BankConfig struct {
	Currency             string
	FundNewAccounts      bool
	InitialFundingAmount string
	PayrollInterval      time.Duration
	PaymentLinkBaseURL   string
}

// LoadBankConfig returns bank policy with defaults, overridable through
// the environment (BANK_CURRENCY, BANK_FUND_NEW_ACCOUNTS, ...).
func LoadBankConfig() *BankConfig {
	viper.SetDefault("bank.currency", "IQD")
	viper.SetDefault("bank.fund_new_accounts", true)
	viper.SetDefault("bank.initial_funding_amount", "100")
	viper.SetDefault("bank.payroll_interval", 24*time.Hour)
	viper.SetDefault("bank.payment_link_base_url", "https://pay.securebank.local/links")

	return &BankConfig{
		Currency:             viper.GetString("bank.currency"),
		FundNewAccounts:      viper.GetBool("bank.fund_new_accounts"),
		InitialFundingAmount: viper.GetString("bank.initial_funding_amount"),
		PayrollInterval:      viper.GetDuration("bank.payroll_interval"),
		PaymentLinkBaseURL:   viper.GetString("bank.payment_link_base_url"),
	}
}
