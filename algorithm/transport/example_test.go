package transport_test

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/demaxmin/algorithm/transport"
)

func values(vals ...int64) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewNullDecimal(decimal.NewFromInt(v))
	}
	return out
}

func ExampleSolve() {
	p, err := transport.Balance(transport.Input{
		OriginLabel:      "Fábrica",
		DestinationLabel: "Ciudad",
		Costs:            [][]decimal.NullDecimal{values(4, 6), values(8, 2)},
		Supply:           values(20, 30),
		Demand:           values(25, 25),
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	sol, err := transport.Solve(p)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, a := range sol.Assignments {
		fmt.Printf("%s -> %s: %s(%s)\n", a.Origin, a.Destination, a.UnitCost, a.Quantity)
	}

	eval, err := sol.Evaluate()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(eval.Expression())
	// Output:
	// Fábrica 1 -> Ciudad 1: 4(20)
	// Fábrica 2 -> Ciudad 2: 2(25)
	// Fábrica 2 -> Ciudad 1: 8(5)
	// Z = 4(20) + 8(5) + 2(25) = 170
}
