package model

// TransactionBatch is an ordered instruction list that becomes one transaction.
type TransactionBatch struct {
	Instructions    []Instruction `json:"-"`
	PositionIndices []int         `json:"position_indices"`
	Description     string        `json:"description"`
}

// Substantive counts the instructions other than compute budget ones.
func (b TransactionBatch) Substantive() int {
	n := 0
	for _, ix := range b.Instructions {
		if ix.Kind() != KindComputeBudget {
			n++
		}
	}
	return n
}
