package models

import "time"

// SourceArtifact is one CSV object as reported by the storage listing.
type SourceArtifact struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
}

// CanonicalRow is the augmented schema delivered downstream. Numeric fields
// are carried as decimal strings to avoid precision loss across transport.
type CanonicalRow struct {
	Symbol            string `json:"symbol"`
	Price             string `json:"price"`
	Change24hPct      string `json:"change_24h_pct"`
	Change24hAbs      string `json:"change_24h_abs"`
	Timestamp         string `json:"timestamp"`
	Name              string `json:"name"`
	Rank              string `json:"rank"`
	MarketCap         string `json:"market_cap"`
	CirculatingSupply string `json:"circulating_supply"`
	Volume24h         string `json:"volume_24h"`
	Category          string `json:"category"`
}

// Enrichment is the market metadata looked up per symbol.
type Enrichment struct {
	Name              string `json:"name"`
	Rank              string `json:"rank"`
	MarketCap         string `json:"market_cap"`
	CirculatingSupply string `json:"circulating_supply"`
	Volume24h         string `json:"volume_24h"`
	Category          string `json:"category"`
	// Defaulted marks entries emitted after a permanent lookup failure.
	Defaulted bool `json:"defaulted,omitempty"`
}

// PendingDelivery tracks one accepted transport call until the downstream
// service confirms or rejects it via webhook.
type PendingDelivery struct {
	CorrelationID string    `json:"correlation_id"`
	ArtifactRefs  []string  `json:"artifact_refs"`
	CreatedAtUTC  time.Time `json:"created_at_utc"`
}

// Confirmation outcomes, as reported by the downstream service.
const (
	OutcomeConfirmed         = "OK"
	OutcomeValidationFailed  = "ERRO_VALIDACAO"
	OutcomePersistenceFailed = "ERRO_PERSISTENCIA"
)

// ConfirmationEvent is the decoded webhook body. Consumed once.
type ConfirmationEvent struct {
	CorrelationID string `json:"ID_Requisicao"`
	Outcome       string `json:"Status"`
	DocumentID    string `json:"ID_Documento,omitempty"`
	Message       string `json:"Mensagem,omitempty"`
}

// ProcessorCursor points at the last source artifact handled through
// transport acceptance. Singleton, overwritten atomically per iteration.
type ProcessorCursor struct {
	LastProcessedFilename string `json:"last_processed_filename"`
	ProcessedAtUTC        string `json:"processed_at_utc"`
}
