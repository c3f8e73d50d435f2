package report

import "strings"

type BlockType string

const (
	BlockText      BlockType = "text"
	BlockKeyValues BlockType = "key_values"
	BlockTable     BlockType = "table"
)

// Pair is one labelled value inside a key/value block.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Block is one ordered unit of a report. Exactly one of Text, Pairs or
// Columns/Rows is populated, selected by Type.
type Block struct {
	Type    BlockType  `json:"type"`
	Title   string     `json:"title,omitempty"`
	Text    string     `json:"text,omitempty"`
	Pairs   []Pair     `json:"pairs,omitempty"`
	Columns []string   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// Report is the structured outcome of one request: an ordered list of typed
// blocks. The core stays renderer-agnostic; Render is only the default text
// boundary.
type Report struct {
	Blocks []Block `json:"blocks"`

	// Observer, when set, is invoked for every appended block. Used to
	// stream blocks to a websocket client while a workflow runs.
	Observer func(Block) `json:"-"`
}

func (r *Report) add(b Block) {
	r.Blocks = append(r.Blocks, b)
	if r.Observer != nil {
		r.Observer(b)
	}
}

func (r *Report) AddText(title, text string) {
	r.add(Block{Type: BlockText, Title: title, Text: text})
}

func (r *Report) AddPairs(title string, pairs ...Pair) {
	r.add(Block{Type: BlockKeyValues, Title: title, Pairs: pairs})
}

func (r *Report) AddTable(title string, columns []string, rows [][]string) {
	r.add(Block{Type: BlockTable, Title: title, Columns: columns, Rows: rows})
}

// Render flattens the report into plain text, one block at a time, in order.
func (r *Report) Render() string {
	var b strings.Builder
	for i, blk := range r.Blocks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if blk.Title != "" {
			b.WriteString(blk.Title)
			b.WriteString("\n")
		}
		switch blk.Type {
		case BlockText:
			b.WriteString(blk.Text)
		case BlockKeyValues:
			for j, p := range blk.Pairs {
				if j > 0 {
					b.WriteString("\n")
				}
				b.WriteString(p.Key)
				b.WriteString(": ")
				b.WriteString(p.Value)
			}
		case BlockTable:
			b.WriteString(strings.Join(blk.Columns, " | "))
			for _, row := range blk.Rows {
				b.WriteString("\n")
				b.WriteString(strings.Join(row, " | "))
			}
		}
	}
	return b.String()
}
