package model

type Chain string

const (
	ChainBTC Chain = "BTC"
	ChainETH Chain = "ETH"
	ChainSOL Chain = "SOL"
)

var SupportedChains = []Chain{ChainBTC, ChainETH, ChainSOL}

func (c Chain) IsValid() bool {
	switch c {
	case ChainBTC, ChainETH, ChainSOL:
		return true
	}
	return false
}

func (c Chain) String() string {
	return string(c)
}
