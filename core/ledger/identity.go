package ledger

import "fmt"

// Aggregate type names. Together with the aggregate id they identify a stream.
const (
	WalletAggType     = "wallet"
	BankAggType       = "bank"
	ReserveAggType    = "federal_reserve"
	GovernmentAggType = "government"
)

// Well-known singleton aggregate ids. The federal reserve and the government
// are ordinary aggregates resolved through the same repository/event-store
// path as per-player wallets; only their ids are fixed.
const (
	FederalReserveID = "federal-reserve"
	GovernmentID     = "government"
)

// IdentityResolver maps an external player/session identity (e.g. a steam
// id) to a wallet aggregate id.
type IdentityResolver interface {
	WalletID(externalID string) string
}

// SteamResolver derives wallet ids from steam identifiers: wallet-<steamId>.
type SteamResolver struct{}

func (SteamResolver) WalletID(steamID string) string { return fmt.Sprintf("wallet-%s", steamID) }

var _ IdentityResolver = SteamResolver{}
