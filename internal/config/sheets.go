package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Idosegev23/finhealer/internal/sheets"
)

// LoadSheetsConfig reads sheets.* keys from v, falling back to the
// GOOGLE_SHEETS_* environment variables, on top of the defaults. It does
// not validate; callers that export call Validate.
func LoadSheetsConfig(v *viper.Viper) sheets.Config {
	cfg := sheets.DefaultConfig()

	str := func(key, env string, dst *string) {
		if v != nil && v.GetString(key) != "" {
			*dst = v.GetString(key)
			return
		}
		if val := os.Getenv(env); val != "" {
			*dst = val
		}
	}
	str("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", &cfg.ServiceAccountPath)
	str("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID", &cfg.ClientID)
	str("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET", &cfg.ClientSecret)
	str("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN", &cfg.RefreshToken)
	str("sheets.token_file", "GOOGLE_SHEETS_TOKEN_FILE", &cfg.TokenFile)
	str("sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID", &cfg.SpreadsheetID)
	str("sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME", &cfg.SpreadsheetName)
	str("sheets.time_zone", "GOOGLE_SHEETS_TIME_ZONE", &cfg.TimeZone)

	cfg.ServiceAccountPath = ExpandPath(cfg.ServiceAccountPath)
	cfg.TokenFile = ExpandPath(cfg.TokenFile)
	if cfg.TokenFile == "" && cfg.ClientID != "" && cfg.RefreshToken == "" {
		cfg.TokenFile = ExpandPath("~/.config/phi/sheets-token.json")
	}

	if v != nil {
		if v.IsSet("sheets.batch_size") {
			cfg.BatchSize = v.GetInt("sheets.batch_size")
		}
		if v.IsSet("sheets.retry_attempts") {
			cfg.RetryAttempts = v.GetInt("sheets.retry_attempts")
		}
		if v.IsSet("sheets.retry_delay") {
			cfg.RetryDelay = v.GetDuration("sheets.retry_delay")
		}
		if v.IsSet("sheets.formatting") {
			cfg.EnableFormatting = v.GetBool("sheets.formatting")
		}
	}
	return cfg
}
