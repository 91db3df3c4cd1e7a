package calc

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// casers are stateful, so a new one is made per call
func upperCaser() cases.Caser { return cases.Upper(language.Und) }
func lowerCaser() cases.Caser { return cases.Lower(language.Und) }
func titleCaser() cases.Caser { return cases.Title(language.Und) }

func caseFunc(name string, caser func() cases.Caser) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgs(name, len(args), 1); err != nil {
			return Null, err
		}
		return Text(caser().String(args[0].AsText())), nil
	}
}

func fnConcat(args []Value) (Value, error) {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(arg.AsText())
	}
	return Text(sb.String()), nil
}

// fnTrim removes leading and trailing whitespace and collapses internal
// runs to a single space.
func fnTrim(args []Value) (Value, error) {
	if err := requireArgs("TRIM", len(args), 1); err != nil {
		return Null, err
	}
	return Text(strings.Join(strings.Fields(args[0].AsText()), " ")), nil
}

func fnLen(args []Value) (Value, error) {
	if err := requireArgs("LEN", len(args), 1); err != nil {
		return Null, err
	}
	return Number(float64(len([]rune(args[0].AsText())))), nil
}

// charCount reads an optional character count, defaulting to 1.
func charCount(name string, args []Value) (int, error) {
	if len(args) < 2 {
		return 1, nil
	}
	n, err := numberArg(name, args[1])
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, NewEvalError(ErrorKindInvalidArgument, "%s: num_chars must be >= 0", name)
	}
	return toInt(n), nil
}

func fnLeft(args []Value) (Value, error) {
	if err := requireArgsRange("LEFT", len(args), 1, 2); err != nil {
		return Null, err
	}
	n, err := charCount("LEFT", args)
	if err != nil {
		return Null, err
	}
	runes := []rune(args[0].AsText())
	return Text(string(runes[:min(n, len(runes))])), nil
}

func fnRight(args []Value) (Value, error) {
	if err := requireArgsRange("RIGHT", len(args), 1, 2); err != nil {
		return Null, err
	}
	n, err := charCount("RIGHT", args)
	if err != nil {
		return Null, err
	}
	runes := []rune(args[0].AsText())
	return Text(string(runes[len(runes)-min(n, len(runes)):])), nil
}

// fnMid is MID(text, start, length) with a 1-based start. A start past the
// end yields "" and the length is clamped to what remains.
func fnMid(args []Value) (Value, error) {
	if err := requireArgs("MID", len(args), 3); err != nil {
		return Null, err
	}
	runes := []rune(args[0].AsText())
	start := max(optionalInt(args, 1, 1)-1, 0)
	length := max(optionalInt(args, 2, 0), 0)
	if start >= len(runes) {
		return Text(""), nil
	}
	end := min(start+length, len(runes))
	return Text(string(runes[start:end])), nil
}

func fnRept(args []Value) (Value, error) {
	if err := requireArgs("REPT", len(args), 2); err != nil {
		return Null, err
	}
	text := args[0].AsText()
	times := max(optionalInt(args, 1, 0), 0)
	if text != "" && times > maxBuildLen/len(text) {
		return Null, NewEvalError(ErrorKindInvalidArgument, "REPT: result longer than %d bytes", maxBuildLen)
	}
	return Text(strings.Repeat(text, times)), nil
}

// fnReplace is REPLACE(old_text, start, num_chars, new_text).
func fnReplace(args []Value) (Value, error) {
	if err := requireArgs("REPLACE", len(args), 4); err != nil {
		return Null, err
	}
	runes := []rune(args[0].AsText())
	start := min(max(optionalInt(args, 1, 1)-1, 0), len(runes))
	end := min(start+max(optionalInt(args, 2, 0), 0), len(runes))
	return Text(string(runes[:start]) + args[3].AsText() + string(runes[end:])), nil
}

// fnSubstitute replaces every occurrence, or only the given 1-based
// instance.
func fnSubstitute(args []Value) (Value, error) {
	if err := requireArgsRange("SUBSTITUTE", len(args), 3, 4); err != nil {
		return Null, err
	}
	text, old, replacement := args[0].AsText(), args[1].AsText(), args[2].AsText()
	if old == "" {
		return Text(text), nil
	}
	if len(args) < 4 {
		return Text(strings.ReplaceAll(text, old, replacement)), nil
	}
	instance := optionalInt(args, 3, 1)
	pos := 0
	for count := 1; ; count++ {
		found := strings.Index(text[pos:], old)
		if found < 0 {
			return Text(text), nil
		}
		at := pos + found
		if count == instance {
			return Text(text[:at] + replacement + text[at+len(old):]), nil
		}
		pos = at + len(old)
	}
}

// findFunc builds FIND (case-sensitive) and SEARCH (case-insensitive).
// Positions are 1-based character offsets.
func findFunc(name string, foldCase bool) valueFunc {
	return func(args []Value) (Value, error) {
		if err := requireArgsRange(name, len(args), 2, 3); err != nil {
			return Null, err
		}
		needle := []rune(args[0].AsText())
		haystack := []rune(args[1].AsText())
		if foldCase {
			needle = []rune(strings.ToLower(string(needle)))
			haystack = []rune(strings.ToLower(string(haystack)))
		}
		start := max(optionalInt(args, 2, 1), 1)
		if start-1 >= len(haystack) {
			return Null, NewEvalError(ErrorKindInvalidArgument, "%s: start_num out of range", name)
		}
		for i := start - 1; i+len(needle) <= len(haystack); i++ {
			if string(haystack[i:i+len(needle)]) == string(needle) {
				return Number(float64(i + 1)), nil
			}
		}
		return Null, NewEvalError(ErrorKindLookupNotFound, "%s: text not found", name)
	}
}

// fnValue parses text as a number, ignoring thousands separators.
func fnValue(args []Value) (Value, error) {
	if err := requireArgs("VALUE", len(args), 1); err != nil {
		return Null, err
	}
	text := args[0].AsText()
	n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", ""), 64)
	if err != nil {
		return Null, NewEvalError(ErrorKindTypeMismatch, "VALUE: Cannot convert '%s' to number", text)
	}
	return Number(n), nil
}

func fnText(args []Value) (Value, error) {
	if err := requireArgs("TEXT", len(args), 2); err != nil {
		return Null, err
	}
	num, _ := args[0].AsNumber()
	return Text(formatWithPattern(num, args[1].AsText())), nil
}

// formatWithPattern renders num with a spreadsheet number format. Only the
// common shapes are understood: percent, currency, fixed decimals,
// scientific and thousands grouping.
func formatWithPattern(num float64, format string) string {
	switch {
	case strings.Contains(format, "%"):
		decimals := max(strings.Count(format, "0")-1, 0)
		return strconv.FormatFloat(num*100, 'f', decimals, 64) + "%"
	case strings.HasPrefix(format, "$") || strings.HasPrefix(format, "[$"):
		decimals := 2
		if dot := strings.LastIndex(format, "."); dot >= 0 {
			decimals = len(format[dot+1:]) - len(strings.TrimLeft(format[dot+1:], "0"))
		}
		return "$" + strconv.FormatFloat(num, 'f', decimals, 64)
	case strings.Contains(format, "."):
		return strconv.FormatFloat(num, 'f', len(format)-strings.Index(format, ".")-1, 64)
	case strings.ContainsAny(format, "eE"):
		return scientific(num)
	case strings.Contains(format, ","):
		return groupThousands(num)
	}
	return formatNumber(num)
}

// scientific prints 1234.5 as 1.2345E3.
func scientific(num float64) string {
	s := strconv.FormatFloat(num, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	n, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(n)
}

// groupThousands prints whole numbers as 1,234,567 and others with two
// decimals, as in 1,234.57.
func groupThousands(num float64) string {
	sign := ""
	if num < 0 {
		sign = "-"
		num = -num
	}
	digits := strconv.FormatFloat(num, 'f', 0, 64)
	frac := ""
	if num != float64(int64(num)) {
		digits, frac, _ = strings.Cut(strconv.FormatFloat(num, 'f', 2, 64), ".")
		frac = "." + frac
	}
	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sign + sb.String() + frac
}
