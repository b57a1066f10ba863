package pipeline

// SplitBlocks cuts a page into one block per delivery note. Every line that
// carries a document number, except the first such line, opens a new block.
func SplitBlocks(lines []string) [][]string {
	var blocks [][]string
	var current []string
	seenNumber := false

	for _, line := range lines {
		if docNumberPattern.MatchString(line) {
			if seenNumber && len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			seenNumber = true
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}
