package core

// NetworkParams bundles the constants that distinguish one Bitcoin network
// from another: its magic, default port, DNS seed hosts and genesis block.
type NetworkParams struct {
	Name     string
	Magic    uint32
	Port     int
	DNSSeeds []string
	Genesis  Block
}

// MainNetParams are the production Bitcoin network's parameters. The
// resulting genesis hash, displayed, is
// 000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f.
var MainNetParams = NetworkParams{
	Name:  "main",
	Magic: MagicMain,
	Port:  PortMain,
	DNSSeeds: []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"dnsseed.bitcoin.dashjr.org",
		"seed.bitcoinstats.com",
		"seed.bitcoin.jonasschnelli.ch",
		"seed.btc.petertodd.org",
		"seed.bitcoin.sprovoost.nl",
		"nsseed.emzy.de",
	},
	Genesis: GenesisBlock(1, 1231006505, 2083236893, 486604799, 5_000_000_000),
}

// TestNet3Params are testnet3's parameters.
var TestNet3Params = NetworkParams{
	Name:  "testnet3",
	Magic: MagicTestnet3,
	Port:  PortTestnet3,
	DNSSeeds: []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
		"seed.tbtc.petertodd.org",
		"seed.testnet.bitcoin.sprovoost.nl",
		"testnet-seed.bluematt.me",
	},
	Genesis: GenesisBlock(1, 1296688602, 414098458, 0x1d00ffff, 5_000_000_000),
}

// NetworkByMagic resolves a magic value to its NetworkParams, used when a
// node is configured by network name but must validate envelope magic.
func NetworkByMagic(magic uint32) (NetworkParams, bool) {
	switch magic {
	case MagicMain:
		return MainNetParams, true
	case MagicTestnet3:
		return TestNet3Params, true
	default:
		return NetworkParams{}, false
	}
}

// NetworkByName resolves a configured network name ("main", "testnet3") to
// its NetworkParams.
func NetworkByName(name string) (NetworkParams, bool) {
	switch name {
	case "main", "":
		return MainNetParams, true
	case "testnet3":
		return TestNet3Params, true
	default:
		return NetworkParams{}, false
	}
}
