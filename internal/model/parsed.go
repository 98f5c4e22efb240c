package model

import "encoding/json"

// ParsedRecordDto is the storage-side envelope of a MARC record.
type ParsedRecordDto struct {
	ID                   string             `json:"id"`
	RecordType           RecordType         `json:"recordType"`
	ParsedRecord         ParsedRecord       `json:"parsedRecord"`
	ExternalIDsHolder    *ExternalIDsHolder `json:"externalIdsHolder,omitempty"`
	AdditionalInfo       AdditionalInfo     `json:"additionalInfo"`
	RelatedRecordVersion string             `json:"relatedRecordVersion,omitempty"`
	Metadata             *Metadata          `json:"metadata,omitempty"`
}

// ParsedRecord holds MARC-in-JSON content.
type ParsedRecord struct {
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content"`
}

// ExternalIDsHolder links a record to the inventory entity it describes.
// Exactly one identifier is populated, chosen by record format.
type ExternalIDsHolder struct {
	InstanceID    string `json:"instanceId,omitempty"`
	InstanceHrid  string `json:"instanceHrid,omitempty"`
	HoldingsID    string `json:"holdingsId,omitempty"`
	HoldingsHrid  string `json:"holdingsHrid,omitempty"`
	AuthorityID   string `json:"authorityId,omitempty"`
	AuthorityHrid string `json:"authorityHrid,omitempty"`
}

// NewExternalIDsHolder places id/hrid in the slot belonging to format.
func NewExternalIDsHolder(format MarcFormat, id, hrid string) *ExternalIDsHolder {
	if id == "" && hrid == "" {
		return nil
	}
	h := &ExternalIDsHolder{}
	switch format {
	case FormatBibliographic:
		h.InstanceID, h.InstanceHrid = id, hrid
	case FormatHoldings:
		h.HoldingsID, h.HoldingsHrid = id, hrid
	case FormatAuthority:
		h.AuthorityID, h.AuthorityHrid = id, hrid
	}
	return h
}

// ExternalFor returns the id/hrid pair held for format.
func (h *ExternalIDsHolder) ExternalFor(format MarcFormat) (id, hrid string) {
	if h == nil {
		return "", ""
	}
	switch format {
	case FormatBibliographic:
		return h.InstanceID, h.InstanceHrid
	case FormatHoldings:
		return h.HoldingsID, h.HoldingsHrid
	case FormatAuthority:
		return h.AuthorityID, h.AuthorityHrid
	}
	return "", ""
}

// ListRecordsQuery pages through stored records ordered by id.
type ListRecordsQuery struct {
	RecordType RecordType // Empty lists every type
	Limit      int        // Defaults to 25, capped at 100
	Cursor     string     // Opaque cursor from a previous page
}

// ListRecordsResult is one page of stored records.
type ListRecordsResult struct {
	Records    []ParsedRecordDto `json:"records"`
	NextCursor string            `json:"nextCursor,omitempty"`
}
