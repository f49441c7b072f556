package portfolio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/vega/internal/domain"
	"github.com/aristath/vega/internal/events"
)

// PriceProvider supplies the latest stored quotes. Interface defined here
// to enable testing with mocks.
type PriceProvider interface {
	GetLatestPrices() (map[string]float64, error)
}

// Service assembles position snapshots for the rebalancing and risk
// endpoints and records the nightly portfolio snapshot.
type Service struct {
	repo      *PositionRepository
	snapshots *SnapshotRepository
	prices    PriceProvider
	bus       *events.Bus
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new portfolio service. prices may be nil when no
// market data store is wired; snapshots and bus may be nil.
func NewService(repo *PositionRepository, snapshots *SnapshotRepository, prices PriceProvider, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		snapshots: snapshots,
		prices:    prices,
		bus:       bus,
		now:       time.Now,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Positions returns all positions with stored prices refreshed from the
// latest quotes where available.
func (s *Service) Positions() ([]domain.Position, error) {
	positions, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	s.refreshPrices(positions)
	return positions, nil
}

// Position returns one position by symbol.
func (s *Service) Position(symbol string) (domain.Position, bool, error) {
	p, found, err := s.repo.Get(symbol)
	if err != nil || !found {
		return domain.Position{}, found, err
	}
	positions := []domain.Position{p}
	s.refreshPrices(positions)
	return positions[0], true, nil
}

// SetTarget creates or updates a position. currentPrice is optional for
// an existing position; a new position needs one.
func (s *Service) SetTarget(symbol string, targetWeight float64, currentPrice *float64) (domain.Position, error) {
	if symbol == "" {
		return domain.Position{}, domain.NewDomainError("position", "symbol must not be empty")
	}
	if targetWeight < 0 || targetWeight > 1 {
		return domain.Position{}, domain.NewDomainError("position", fmt.Sprintf("target weight must be within [0, 1], got %v", targetWeight))
	}
	if currentPrice != nil && *currentPrice <= 0 {
		return domain.Position{}, domain.NewDomainError("position", fmt.Sprintf("current price must be positive, got %v", *currentPrice))
	}

	existing, found, err := s.repo.Get(symbol)
	if err != nil {
		return domain.Position{}, err
	}

	price := 0.0
	switch {
	case currentPrice != nil:
		price = *currentPrice
	case found:
		price = existing.CurrentPrice
	default:
		return domain.Position{}, domain.NewDomainError("position", "current price is required for a new position")
	}

	if err := s.repo.Upsert(symbol, targetWeight, price); err != nil {
		return domain.Position{}, err
	}

	updated, _, err := s.repo.Get(symbol)
	if err != nil {
		return domain.Position{}, err
	}

	s.log.Info().
		Str("symbol", symbol).
		Float64("target_weight", targetWeight).
		Msg("Position target updated")

	return updated, nil
}

// AddLot validates and stores a new tax lot under a fresh uuid.
func (s *Service) AddLot(symbol string, shares, costBasis float64, purchaseDate time.Time) (domain.TaxLot, error) {
	if purchaseDate.After(s.now()) {
		return domain.TaxLot{}, domain.NewDomainError("tax_lot", "purchase date must not be in the future")
	}
	lot, err := domain.NewTaxLot(uuid.New().String(), shares, costBasis, purchaseDate, false)
	if err != nil {
		return domain.TaxLot{}, err
	}

	if err := s.repo.AddLot(symbol, lot); err != nil {
		return domain.TaxLot{}, err
	}
	lot.IsLongTerm = lot.LongTermAt(s.now())

	s.log.Info().
		Str("symbol", symbol).
		Str("lot_id", lot.ID).
		Float64("shares", shares).
		Msg("Tax lot added")

	return lot, nil
}

// RemoveLot deletes a tax lot by id. Returns false when the lot does not
// exist.
func (s *Service) RemoveLot(id string) (bool, error) {
	deleted, err := s.repo.DeleteLot(id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info().Str("lot_id", id).Msg("Tax lot removed")
	}
	return deleted, nil
}

// Weights returns each position's share of total market value. Positions
// without value are reported as 0; an empty portfolio yields an empty
// map.
func (s *Service) Weights() (map[string]float64, error) {
	positions, err := s.Positions()
	if err != nil {
		return nil, err
	}

	weights := make(map[string]float64, len(positions))
	total := domain.TotalMarketValue(positions)
	for _, p := range positions {
		if total > 0 {
			weights[p.Symbol] = p.MarketValue() / total
		} else {
			weights[p.Symbol] = 0
		}
	}
	return weights, nil
}

// TakeSnapshot persists the current portfolio state. Wired into the
// nightly scheduler job.
func (s *Service) TakeSnapshot() error {
	if s.snapshots == nil {
		return fmt.Errorf("no snapshot repository configured")
	}

	positions, err := s.Positions()
	if err != nil {
		return fmt.Errorf("failed to load positions for snapshot: %w", err)
	}

	total := domain.TotalMarketValue(positions)
	snapshot := Snapshot{
		ID:         uuid.New().String(),
		TakenAt:    s.now().UTC(),
		TotalValue: total,
		Positions:  make([]SnapshotPosition, 0, len(positions)),
	}

	for _, p := range positions {
		value := p.MarketValue()
		weight := 0.0
		if total > 0 {
			weight = value / total
		}
		var pnl float64
		for _, lot := range p.Lots {
			pnl += lot.UnrealizedGain(p.CurrentPrice)
		}
		snapshot.Positions = append(snapshot.Positions, SnapshotPosition{
			Symbol:        p.Symbol,
			Shares:        p.Shares(),
			Price:         p.CurrentPrice,
			MarketValue:   value,
			Weight:        weight,
			TargetWeight:  p.TargetWeight,
			UnrealizedPnL: pnl,
		})
	}

	if err := s.snapshots.Save(snapshot); err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Emit(events.SnapshotSaved, "portfolio", events.SnapshotSavedData{
			SnapshotID: snapshot.ID,
			TotalValue: snapshot.TotalValue,
			Positions:  len(snapshot.Positions),
		})
	}

	s.log.Info().
		Str("snapshot_id", snapshot.ID).
		Float64("total_value", snapshot.TotalValue).
		Int("positions", len(snapshot.Positions)).
		Msg("Portfolio snapshot saved")

	return nil
}

// LatestSnapshot returns the most recent stored snapshot, or nil.
func (s *Service) LatestSnapshot() (*Snapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.Latest()
}

// refreshPrices overlays the latest stored quotes onto the positions.
// Lookup failures keep the stored prices.
func (s *Service) refreshPrices(positions []domain.Position) {
	if s.prices == nil || len(positions) == 0 {
		return
	}
	latest, err := s.prices.GetLatestPrices()
	if err != nil {
		s.log.Debug().Err(err).Msg("Latest quotes unavailable, using stored prices")
		return
	}
	for i := range positions {
		if price, ok := latest[positions[i].Symbol]; ok && price > 0 {
			positions[i].CurrentPrice = price
		}
	}
}
