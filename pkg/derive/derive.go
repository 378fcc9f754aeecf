// Package derive computes deterministic marketplace-controlled account
// addresses.
//
// The marketplace owns one account per concern per listing (item escrow, share
// treasury, community pool) plus a settlement escrow per deployment. Addresses
// are a pure, collision-resistant function of (marketplace address, domain
// seed, entity key), so lookup never needs a separate index and two deployments
// never collide. Derivation is a capability consumed by the core, not core
// logic itself.
package derive

import (
	"crypto/sha256"
	"encoding/hex"

	id "fracmarket/pkg/domain"
)

// Domain seeds. One per marketplace-controlled account concern.
const (
	SeedEscrow    = "escrow"
	SeedShares    = "shares"
	SeedCommunity = "community"
	SeedListing   = "listing"
)

// Address derives the marketplace-controlled account address for the given
// domain seed and entity key.
func Address(marketplace id.AccountID, seed, entityKey string) id.AccountID {
	h := sha256.New()
	h.Write([]byte(marketplace))
	h.Write([]byte{0})
	h.Write([]byte(seed))
	h.Write([]byte{0})
	h.Write([]byte(entityKey))
	return id.AccountID(hex.EncodeToString(h.Sum(nil)))
}

// ItemEscrow is the custody account for one listing's item.
func ItemEscrow(marketplace id.AccountID, asset id.AssetID) id.AccountID {
	return Address(marketplace, SeedEscrow, asset.String())
}

// ShareTreasury is the account holding one listing's unsold share position.
func ShareTreasury(marketplace id.AccountID, listing id.ListingID) id.AccountID {
	return Address(marketplace, SeedShares, listing.String())
}

// CommunityPool is the account accruing one listing's community rewards.
func CommunityPool(marketplace id.AccountID, listing id.ListingID) id.AccountID {
	return Address(marketplace, SeedCommunity, listing.String())
}

// SettlementEscrow is the deployment-wide account holding sale proceeds
// pending redemption.
func SettlementEscrow(marketplace id.AccountID) id.AccountID {
	return Address(marketplace, SeedEscrow, "settlement")
}
