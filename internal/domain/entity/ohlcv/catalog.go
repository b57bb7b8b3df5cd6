package ohlcv

var cryptoSymbols = []string{
	"BTC-USD", "ETH-USD", "BNB-USD", "XRP-USD", "ADA-USD",
	"SOL-USD", "DOGE-USD", "DOT-USD", "MATIC-USD", "AVAX-USD",
}

// CAC 40 subset.
var frenchStocks = []string{
	"MC.PA",  // LVMH
	"OR.PA",  // L'Oréal
	"SAN.PA", // Sanofi
	"TTE.PA", // TotalEnergies
	"AIR.PA", // Airbus
	"BNP.PA", // BNP Paribas
	"CA.PA",  // Carrefour
	"ACA.PA", // Crédit Agricole
	"CS.PA",  // AXA
	"DG.PA",  // Vinci
	"EN.PA",  // Bouygues
	"SGO.PA", // Saint-Gobain
	"RMS.PA", // Hermès
	"KER.PA", // Kering
	"UL.PA",  // Unilever
}

// CoinGeckoIDs maps canonical crypto symbols to CoinGecko coin identifiers.
// Symbols missing from this map are never sent to CoinGecko.
var CoinGeckoIDs = map[string]string{
	"BTC-USD":   "bitcoin",
	"ETH-USD":   "ethereum",
	"BNB-USD":   "binancecoin",
	"XRP-USD":   "ripple",
	"ADA-USD":   "cardano",
	"SOL-USD":   "solana",
	"DOGE-USD":  "dogecoin",
	"DOT-USD":   "polkadot",
	"MATIC-USD": "matic-network",
	"AVAX-USD":  "avalanche-2",
}

// Symbols returns a copy of the supported symbols of a class, in catalog order.
func Symbols(class AssetClass) []string {
	var src []string
	switch class {
	case ClassCrypto:
		src = cryptoSymbols
	case ClassStock:
		src = frenchStocks
	default:
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
