package domain

// OrderBook representa el libro de órdenes de un token.
type OrderBook struct {
	TokenID string
	Bids    []BookEntry // ordenados mayor a menor precio
	Asks    []BookEntry // ordenados menor a mayor precio
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread devuelve el spread del book (ask - bid).
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// AskDepthUSDC calcula el valor en USDC (size × price) de los asks a no más
// de maxAbove por encima del mejor ask. Mide cuánto se puede comprar sin
// mover el precio — el gate de liquidez del motor usa esta cifra.
func (ob OrderBook) AskDepthUSDC(maxAbove float64) float64 {
	best := ob.BestAsk()
	if best == 0 {
		return 0
	}
	var total float64
	for _, a := range ob.Asks {
		if a.Price-best <= maxAbove {
			total += a.Size * a.Price
		}
	}
	return total
}

// BidDepthUSDC calcula el valor en USDC de los bids a no más de maxBelow
// por debajo del mejor bid. Mide cuánto se puede vender sin hundir el precio.
func (ob OrderBook) BidDepthUSDC(maxBelow float64) float64 {
	best := ob.BestBid()
	if best == 0 {
		return 0
	}
	var total float64
	for _, b := range ob.Bids {
		if best-b.Price <= maxBelow {
			total += b.Size * b.Price
		}
	}
	return total
}

