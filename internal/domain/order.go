package domain

// OrderSide es el lado de una orden en el CLOB.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// OrderRequest se envía al executor del CLOB. Price es el precio límite
// marketable: al comprar, el mejor ask; al vender, el mejor bid.
type OrderRequest struct {
	TokenID     string
	ConditionID string
	Side        OrderSide
	Price       float64
	Shares      float64
	NegRisk     bool // mercado sobre el adapter NegRisk
}

// PlacedOrder es la respuesta del CLOB al colocar una orden.
type PlacedOrder struct {
	OrderID       string
	Status        string  // matched / live / delayed según el CLOB
	MatchedShares float64 // shares cruzados inmediatamente contra el book
}
