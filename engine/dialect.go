// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import "strings"

// PlaceholderStyle selects how bind parameters are written
type PlaceholderStyle int

const (
	// PlaceholderQuestion writes "?" for every parameter (MySQL, SQLite)
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar writes "$1", "$2", ... (PostgreSQL)
	PlaceholderDollar
	// PlaceholderAtP writes "@p1", "@p2", ... (SQL Server)
	PlaceholderAtP
)

// LimitStyle selects how row limits are rendered
type LimitStyle string

const (
	// LimitStyleLimit renders "LIMIT n OFFSET m" after the statement
	LimitStyleLimit LimitStyle = "limit"
	// LimitStyleTopN renders "SELECT TOP n" (SQL Server family)
	LimitStyleTopN LimitStyle = "top_n"
)

// Dialect captures the SQL rendering differences between drivers
type Dialect struct {
	Driver      string
	Quote       string
	Placeholder PlaceholderStyle
	Limit       LimitStyle
}

var dialects = map[string]Dialect{
	"mysql":     {Driver: "mysql", Quote: "`", Placeholder: PlaceholderQuestion, Limit: LimitStyleLimit},
	"postgres":  {Driver: "postgres", Quote: `"`, Placeholder: PlaceholderDollar, Limit: LimitStyleLimit},
	"sqlite3":   {Driver: "sqlite3", Quote: `"`, Placeholder: PlaceholderQuestion, Limit: LimitStyleLimit},
	"sqlserver": {Driver: "sqlserver", Quote: "[", Placeholder: PlaceholderAtP, Limit: LimitStyleTopN},
}

// DialectFor returns the dialect registered for a driver name. Unknown
// drivers get ANSI quoting, "?" placeholders and LIMIT clauses.
func DialectFor(driver string) Dialect {
	if d, ok := dialects[driver]; ok {
		return d
	}
	return Dialect{Driver: driver, Quote: `"`, Placeholder: PlaceholderQuestion, Limit: LimitStyleLimit}
}

// withOverrides applies the identifier_quote_character and
// limit_clause_style settings on top of the detected dialect
func (d Dialect) withOverrides(s Settings, connection string) Dialect {
	if q := settingString(s, KeyIdentifierQuoteCharacter, connection); q != "" {
		d.Quote = q
	}
	switch strings.ToLower(settingString(s, KeyLimitClauseStyle, connection)) {
	case "top", "top_n", "top_n_style":
		d.Limit = LimitStyleTopN
	case "limit", "limit_style":
		d.Limit = LimitStyleLimit
	}
	return d
}

// QuoteIdentifier quotes a possibly dotted identifier. "*" parts are left bare.
func (d Dialect) QuoteIdentifier(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		opening, closing := d.Quote, d.Quote
		if d.Quote == "[" {
			closing = "]"
		}
		p = strings.ReplaceAll(p, closing, closing+closing)
		parts[i] = opening + p + closing
	}
	return strings.Join(parts, ".")
}
