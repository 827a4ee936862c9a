package ir

// WalkSeqs visits every sequence reachable from the entry of a function
// body in depth-first preorder, following Block, Loop and IfElse
// references. Each sequence is visited at most once. Traversal stops at
// the first error.
func (f *LocalFunction) WalkSeqs(visit func(id InstrSeqID, seq *InstrSeq) error) error {
	seen := make(map[InstrSeqID]bool, f.Seqs.Len())
	stack := []InstrSeqID{f.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true

		seq, err := f.Seqs.Get(id)
		if err != nil {
			return err
		}
		if err := visit(id, seq); err != nil {
			return err
		}

		// Push children in reverse so they pop in source order.
		for n := len(seq.Instrs) - 1; n >= 0; n-- {
			switch i := seq.Instrs[n].(type) {
			case Block:
				stack = append(stack, i.Seq)
			case Loop:
				stack = append(stack, i.Seq)
			case IfElse:
				stack = append(stack, i.Alternative, i.Consequent)
			}
		}
	}
	return nil
}

// WalkInstrs visits every instruction reachable from the entry of a
// function body, sequence by sequence in depth-first preorder.
func (f *LocalFunction) WalkInstrs(visit func(seq InstrSeqID, n int, instr Instr) error) error {
	return f.WalkSeqs(func(id InstrSeqID, seq *InstrSeq) error {
		for n, instr := range seq.Instrs {
			if err := visit(id, n, instr); err != nil {
				return err
			}
		}
		return nil
	})
}
