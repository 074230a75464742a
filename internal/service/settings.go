package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/cafe-pos/api/internal/currency"
	"github.com/cafe-pos/api/internal/database"
	"github.com/cafe-pos/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned when changing currency settings.
var (
	ErrInvalidExchangeRate   = errors.New("exchange rate must be a positive number")
	ErrInvalidRoundingFactor = errors.New("rounding factor must be zero or a positive integer")
	ErrExchangeRateRange     = errors.New("exchange rate must be below 10000000000 with at most 4 decimal places")
)

type settingsReader interface {
	GetSystemSetting(ctx context.Context, key string) (database.SystemSetting, error)
}

// currentConverter reads the live exchange rate and rounding factor from
// system_settings. Missing or unparsable rows fall back to the configured
// defaults, one key at a time.
func currentConverter(ctx context.Context, store settingsReader, fallback currency.Converter) (currency.Converter, error) {
	conv := fallback

	rate, err := store.GetSystemSetting(ctx, enum.SettingExchangeRate)
	switch {
	case err == nil:
		if d, perr := decimal.NewFromString(rate.Value); perr == nil && currency.ValidateRate(d) == nil {
			conv.Rate = d
		} else {
			log.Printf("WARN: setting %s=%q is invalid, using %s", enum.SettingExchangeRate, rate.Value, fallback.Rate)
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return currency.Converter{}, fmt.Errorf("get %s: %w", enum.SettingExchangeRate, err)
	}

	factor, err := store.GetSystemSetting(ctx, enum.SettingRoundingFactor)
	switch {
	case err == nil:
		if n, perr := strconv.ParseInt(factor.Value, 10, 64); perr == nil && n >= 0 {
			conv.Granularity = n
		} else {
			log.Printf("WARN: setting %s=%q is invalid, using %d", enum.SettingRoundingFactor, factor.Value, fallback.Granularity)
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return currency.Converter{}, fmt.Errorf("get %s: %w", enum.SettingRoundingFactor, err)
	}

	return conv, nil
}

// SettingsStore defines the DB methods needed by SettingsService.
// Satisfied by *database.Queries (and its WithTx variant).
type SettingsStore interface {
	GetSystemSetting(ctx context.Context, key string) (database.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, arg database.UpsertSystemSettingParams) (database.SystemSetting, error)
}

// NewSettingsStore creates a SettingsStore from a DBTX (pool or tx).
type NewSettingsStore func(db database.DBTX) SettingsStore

// UpdateExchangeRateRequest changes the rate used for new orders.
// Orders already placed keep the rate captured on them.
type UpdateExchangeRateRequest struct {
	ExchangeRate   string
	RoundingFactor int64
	Actor          Actor
}

// SettingsService manages the currency settings.
type SettingsService struct {
	pool     TxBeginner
	newStore NewSettingsStore
	fallback currency.Converter
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(pool TxBeginner, newStore NewSettingsStore, fallback currency.Converter) *SettingsService {
	return &SettingsService{pool: pool, newStore: newStore, fallback: fallback}
}

// Converter returns the rate and rounding factor new orders would use.
func (s *SettingsService) Converter(ctx context.Context) (currency.Converter, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return currency.Converter{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return currentConverter(ctx, s.newStore(tx), s.fallback)
}

// UpdateExchangeRate writes both currency settings in one transaction.
func (s *SettingsService) UpdateExchangeRate(ctx context.Context, req UpdateExchangeRateRequest) (currency.Converter, error) {
	if err := authorize(req.Actor, enum.UserRoleManager); err != nil {
		return currency.Converter{}, err
	}
	rate, err := decimal.NewFromString(req.ExchangeRate)
	if err != nil || !rate.IsPositive() {
		return currency.Converter{}, ErrInvalidExchangeRate
	}
	if err := currency.ValidateRate(rate); err != nil {
		return currency.Converter{}, fmt.Errorf("%w: %v", ErrExchangeRateRange, err)
	}
	if req.RoundingFactor < 0 {
		return currency.Converter{}, ErrInvalidRoundingFactor
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return currency.Converter{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.UpsertSystemSetting(ctx, database.UpsertSystemSettingParams{
		Key:         enum.SettingExchangeRate,
		Value:       rate.String(),
		Description: pgtype.Text{String: "USD to LBP exchange rate", Valid: true},
	}); err != nil {
		return currency.Converter{}, fmt.Errorf("save %s: %w", enum.SettingExchangeRate, err)
	}
	if _, err := store.UpsertSystemSetting(ctx, database.UpsertSystemSettingParams{
		Key:         enum.SettingRoundingFactor,
		Value:       strconv.FormatInt(req.RoundingFactor, 10),
		Description: pgtype.Text{String: "LBP rounding granularity", Valid: true},
	}); err != nil {
		return currency.Converter{}, fmt.Errorf("save %s: %w", enum.SettingRoundingFactor, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return currency.Converter{}, fmt.Errorf("commit tx: %w", err)
	}
	return currency.Converter{Rate: rate, Granularity: req.RoundingFactor}, nil
}
