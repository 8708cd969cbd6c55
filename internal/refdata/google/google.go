// Package google reads the reference-data spreadsheet published by the
// card-catalog team. One tab per entity; the first row of each tab is a
// header and is skipped.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"milecard/internal/refdata"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config locates the spreadsheet and the OAuth credentials. Client and
// token each come from inline JSON or a file; inline wins when both are
// set. When neither is set the client falls back to a service account
// from the standard Google environment variables.
type Config struct {
	SpreadsheetID string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	categoriesSheet string
	programsSheet   string
	cardsSheet      string
	rulesSheet      string
	capsSheet       string
	partnersSheet   string
	changesSheet    string
}

var _ refdata.Source = (*Client)(nil)

// New creates a Sheets-backed source. Tab names default to Categories,
// Programs, Cards, EarnRules, Caps, Partners, RateChanges and can be
// overridden with SHEET_* environment variables.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:             svc,
		spreadsheetID:   cfg.SpreadsheetID,
		categoriesSheet: sheetName("SHEET_CATEGORIES", "Categories"),
		programsSheet:   sheetName("SHEET_PROGRAMS", "Programs"),
		cardsSheet:      sheetName("SHEET_CARDS", "Cards"),
		rulesSheet:      sheetName("SHEET_EARN_RULES", "EarnRules"),
		capsSheet:       sheetName("SHEET_CAPS", "Caps"),
		partnersSheet:   sheetName("SHEET_PARTNERS", "Partners"),
		changesSheet:    sheetName("SHEET_RATE_CHANGES", "RateChanges"),
	}, nil
}

func sheetName(envKey, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return fallback
}

// newSheetsService authenticates with the user OAuth client and token
// when configured, otherwise with a service account from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	clientJSON, err := loadJSON(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	tokenJSON, err := loadJSON(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	if clientJSON != nil && tokenJSON != nil {
		oauthCfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse oauth client: %w", err)
		}
		var tok oauth2.Token
		if err := json.Unmarshal(tokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("parse oauth token: %w", err)
		}
		slog.InfoContext(ctx, "Using OAuth user credentials for Sheets")
		return gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &tok)))
	}

	credentialsJSON, err := serviceAccountJSON()
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Using service account credentials for Sheets",
		"credentials_size", len(credentialsJSON))
	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

func loadJSON(inline, file string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return b, nil
	}
	return nil, nil
}

func serviceAccountJSON() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing credentials (set OAuth client+token or GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Fetch reads every tab and parses it into a snapshot. Rows a tab parser
// rejects are logged and dropped; the importer validates the rest.
func (c *Client) Fetch(ctx context.Context) (refdata.Dataset, error) {
	var ds refdata.Dataset

	rows, err := c.readRows(ctx, c.categoriesSheet, "A2:A")
	if err != nil {
		return refdata.Dataset{}, err
	}
	ds.Categories = parseCategories(rows)

	if err := fetchTab(ctx, c, c.programsSheet, "A2:D", parseProgramRow, &ds.Programs); err != nil {
		return refdata.Dataset{}, err
	}
	if err := fetchTab(ctx, c, c.cardsSheet, "A2:M", parseCardRow, &ds.Cards); err != nil {
		return refdata.Dataset{}, err
	}
	if err := fetchTab(ctx, c, c.rulesSheet, "A2:H", parseEarnRuleRow, &ds.EarnRules); err != nil {
		return refdata.Dataset{}, err
	}
	if err := fetchTab(ctx, c, c.capsSheet, "A2:D", parseCapRow, &ds.Caps); err != nil {
		return refdata.Dataset{}, err
	}
	if err := fetchTab(ctx, c, c.partnersSheet, "A2:G", parsePartnerRow, &ds.Partners); err != nil {
		return refdata.Dataset{}, err
	}
	if err := fetchTab(ctx, c, c.changesSheet, "A2:K", parseRateChangeRow, &ds.RateChanges); err != nil {
		return refdata.Dataset{}, err
	}

	return ds, nil
}

func fetchTab[T any](ctx context.Context, c *Client, sheet, cols string, parse func([]string) (T, error), out *[]T) error {
	rows, err := c.readRows(ctx, sheet, cols)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		v, err := parse(row)
		if err != nil {
			slog.WarnContext(ctx, "Dropping unparseable row",
				"sheet", sheet, "row", i+2, "error", err)
			continue
		}
		*out = append(*out, v)
	}
	return nil
}

func (c *Client) readRows(ctx context.Context, sheet, cols string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		out = append(out, toStrings(row))
	}
	return out, nil
}
