package escpos

// TextOptions is the option bag accepted alongside a text segment
type TextOptions struct {
	// Encoding names the code page the text is converted to; empty means CP437
	Encoding string `json:"encoding,omitempty"`
	// WidthTimes and HeightTimes are character multipliers; 0 means 1
	WidthTimes  int       `json:"width_times,omitempty"`
	HeightTimes int       `json:"height_times,omitempty"`
	FontType    int       `json:"font_type,omitempty"`
	Bold        bool      `json:"bold,omitempty"`
	Align       Alignment `json:"align,omitempty"`
}

// Prefix returns the control bytes that apply the options
func (o TextOptions) Prefix() []byte {
	b := New().
		CodePage(CodePageNumber(o.Encoding)).
		Font(o.FontType).
		Size(orOne(o.WidthTimes), orOne(o.HeightTimes)).
		Bold(o.Bold).
		Align(o.Align)
	return b.Bytes()
}

// Render returns the option prefix followed by the encoded text. The prefix
// is always sent, so zero options print normal left-aligned text whatever
// mode the printer was left in.
func (o TextOptions) Render(text string) ([]byte, error) {
	data, err := Encode(text, o.Encoding)
	if err != nil {
		return nil, err
	}
	return append(o.Prefix(), data...), nil
}

func orOne(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}
