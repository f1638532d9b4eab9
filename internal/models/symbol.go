package models

// SecurityType classifies the kind of instrument a symbol refers to.
type SecurityType string

const (
	SecurityTypeEquity SecurityType = "equity"
	SecurityTypeForex  SecurityType = "forex"
	SecurityTypeCrypto SecurityType = "crypto"
	SecurityTypeFuture SecurityType = "future"
	SecurityTypeOption SecurityType = "option"
)

// Symbol identifies a tradable instrument. It is comparable and can be used
// as a map key; insights treat it as opaque.
type Symbol struct {
	Value        string       `json:"value"`
	Market       string       `json:"market"`
	SecurityType SecurityType `json:"security_type"`
}

// NewSymbol returns an equity symbol on the given market.
func NewSymbol(value, market string) Symbol {
	return Symbol{Value: value, Market: market, SecurityType: SecurityTypeEquity}
}

// ID returns a stable identifier combining value, market and security type.
func (s Symbol) ID() string {
	return s.Value + " " + string(s.SecurityType) + " " + s.Market
}

func (s Symbol) String() string {
	return s.Value
}
