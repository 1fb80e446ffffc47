package journal

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	// ScopeHolder is any on-ledger holder address (position accounts and
	// external wallets are indistinguishable at the balance level).
	ScopeHolder AccountScope = iota
	ScopeSystem
	ScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Holder sub-types
	SubTypeBalance AccountSubType = iota

	// System sub-types
	SubTypeSystemEmission
	SubTypeSystemIssuance

	// External sub-types
	SubTypeExternalCustody
)

// AssetID maps asset symbols to numeric IDs for compact keys
type AssetID uint16

var (
	assetToID = map[string]AssetID{
		"YIELD":   1, // yield-bearing reward/collateral token
		"BORROW":  2, // synthetic borrowed asset
		"DEBT":    3, // debt-tracking token
		"LPSHARE": 4, // per-position LP share token
	}
	idToAsset = map[AssetID]string{
		1: "YIELD",
		2: "BORROW",
		3: "DEBT",
		4: "LPSHARE",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key identifying one side of a journal entry
type AccountKey struct {
	Scope   AccountScope
	Addr    common.Address // holder address; zero for system/external accounts
	SubType AccountSubType
	Asset   AssetID
}

// NewHolderAccountKey creates a key for an on-ledger holder balance
func NewHolderAccountKey(addr common.Address, asset AssetID) AccountKey {
	return AccountKey{
		Scope:   ScopeHolder,
		Addr:    addr,
		SubType: SubTypeBalance,
		Asset:   asset,
	}
}

// NewSystemAccountKey creates a key for protocol-internal accounts
func NewSystemAccountKey(subType AccountSubType, asset AssetID) AccountKey {
	return AccountKey{
		Scope:   ScopeSystem,
		SubType: subType,
		Asset:   asset,
	}
}

// NewExternalAccountKey creates a key for the off-ledger boundary
func NewExternalAccountKey(asset AssetID) AccountKey {
	return AccountKey{
		Scope:   ScopeExternal,
		SubType: SubTypeExternalCustody,
		Asset:   asset,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.Asset)

	switch k.Scope {
	case ScopeHolder:
		return fmt.Sprintf("holder:%s:%s", k.Addr.Hex(), assetName)
	case ScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case ScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeBalance:
		return "balance"
	case SubTypeSystemEmission:
		return "emission"
	case SubTypeSystemIssuance:
		return "issuance"
	case SubTypeExternalCustody:
		return "custody"
	default:
		return "unknown"
	}
}
