package calc

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Category groups built-in functions for listing
type Category int

const (
	CategoryMath Category = iota
	CategoryAggregation
	CategoryLogical
	CategoryText
	CategoryDate
	CategoryLookup
	CategoryFinancial
	CategoryStatistical
	CategoryTrigonometric
	CategoryInformation
	CategoryConditional
	CategoryArray
	CategoryAdvanced
	CategoryDomain
)

var categoryNames = map[Category]string{
	CategoryMath:          "Math",
	CategoryAggregation:   "Aggregation",
	CategoryLogical:       "Logical",
	CategoryText:          "Text",
	CategoryDate:          "Date",
	CategoryLookup:        "Lookup",
	CategoryFinancial:     "Financial",
	CategoryStatistical:   "Statistical",
	CategoryTrigonometric: "Trigonometric",
	CategoryInformation:   "Information",
	CategoryConditional:   "Conditional",
	CategoryArray:         "Array",
	CategoryAdvanced:      "Advanced",
	CategoryDomain:        "Domain",
}

func (c Category) String() string {
	return categoryNames[c]
}

// FunctionID identifies a built-in function. The set is closed; the
// evaluator dispatches on it with a single switch.
type FunctionID int

const (
	fnInvalid FunctionID = iota // reserve 0 for no function
	FnAbs
	FnSqrt
	FnRound
	FnRoundup
	FnRounddown
	FnFloor
	FnCeiling
	FnMod
	FnPower
	FnExp
	FnLn
	FnLog10
	FnLog
	FnInt
	FnSign
	FnTrunc
	FnPi
	FnE
	FnRand
	FnRandbetween
	FnSum
	FnProduct
	FnAverage
	FnCount
	FnCounta
	FnCountblank
	FnMin
	FnMax
	FnCountunique
	FnLarge
	FnSmall
	FnRankEq
	FnMedian
	FnVarS
	FnVarP
	FnStdevS
	FnStdevP
	FnPercentile
	FnQuartile
	FnCorrel
	FnIf
	FnAnd
	FnOr
	FnNot
	FnXor
	FnIferror
	FnIfna
	FnIfs
	FnTrue
	FnFalse
	FnConcat
	FnUpper
	FnLower
	FnProper
	FnTrim
	FnLen
	FnLeft
	FnRight
	FnMid
	FnRept
	FnReplace
	FnSubstitute
	FnFind
	FnSearch
	FnText
	FnValue
	FnToday
	FnNow
	FnDate
	FnTime
	FnYear
	FnMonth
	FnDay
	FnHour
	FnMinute
	FnSecond
	FnDays
	FnWeekday
	FnEdate
	FnEomonth
	FnDatedif
	FnYearfrac
	FnWorkday
	FnNetworkdays
	FnMatch
	FnIndex
	FnXlookup
	FnVlookup
	FnHlookup
	FnChoose
	FnIndirect
	FnRows
	FnColumns
	FnOffset
	FnRow
	FnColumn
	FnAddress
	FnPmt
	FnFv
	FnPv
	FnNpv
	FnIrr
	FnNper
	FnRate
	FnXnpv
	FnXirr
	FnMirr
	FnSln
	FnDb
	FnDdb
	FnPpmt
	FnIpmt
	FnEffect
	FnNominal
	FnPricedisc
	FnYielddisc
	FnAccrint
	FnSin
	FnCos
	FnTan
	FnAsin
	FnAcos
	FnAtan
	FnSinh
	FnCosh
	FnTanh
	FnRadians
	FnDegrees
	FnIsblank
	FnIsna
	FnIserror
	FnIsnumber
	FnIstext
	FnIslogical
	FnIseven
	FnIsodd
	FnIsref
	FnIsformula
	FnNa
	FnType
	FnN
	FnSumif
	FnSumifs
	FnCountif
	FnCountifs
	FnAverageif
	FnAverageifs
	FnMaxifs
	FnMinifs
	FnUnique
	FnSort
	FnFilter
	FnSequence
	FnRandarray
	FnLet
	FnLambda
	FnSwitch
	FnVariance
	FnVariancePct
	FnVarianceStatus
	FnBreakevenUnits
	FnBreakevenRevenue
	FnScenario
)

// FunctionDef describes a built-in function. Aggregate marks functions
// that reduce a whole column to one value; they are rejected as row
// formulas.
type FunctionDef struct {
	ID          FunctionID
	Name        string
	Aliases     []string
	Category    Category
	Description string
	Syntax      string
	Aggregate   bool
}

var functionDefs = []FunctionDef{
	{ID: FnAbs, Name: "ABS", Category: CategoryMath, Description: "Absolute value", Syntax: "=ABS(value)"},
	{ID: FnSqrt, Name: "SQRT", Category: CategoryMath, Description: "Square root", Syntax: "=SQRT(value)"},
	{ID: FnRound, Name: "ROUND", Category: CategoryMath, Description: "Round to decimals", Syntax: "=ROUND(value, decimals)"},
	{ID: FnRoundup, Name: "ROUNDUP", Category: CategoryMath, Description: "Round up away from zero", Syntax: "=ROUNDUP(value, decimals)"},
	{ID: FnRounddown, Name: "ROUNDDOWN", Category: CategoryMath, Description: "Round down toward zero", Syntax: "=ROUNDDOWN(value, decimals)"},
	{ID: FnFloor, Name: "FLOOR", Category: CategoryMath, Description: "Round down to multiple", Syntax: "=FLOOR(value, significance)"},
	{ID: FnCeiling, Name: "CEILING", Category: CategoryMath, Description: "Round up to multiple", Syntax: "=CEILING(value, significance)"},
	{ID: FnMod, Name: "MOD", Category: CategoryMath, Description: "Remainder after division", Syntax: "=MOD(number, divisor)"},
	{ID: FnPower, Name: "POWER", Category: CategoryMath, Description: "Number raised to power", Syntax: "=POWER(base, exponent)", Aliases: []string{"POW"}},
	{ID: FnExp, Name: "EXP", Category: CategoryMath, Description: "e raised to power", Syntax: "=EXP(value)"},
	{ID: FnLn, Name: "LN", Category: CategoryMath, Description: "Natural logarithm", Syntax: "=LN(value)"},
	{ID: FnLog10, Name: "LOG10", Category: CategoryMath, Description: "Base-10 logarithm", Syntax: "=LOG10(value)"},
	{ID: FnLog, Name: "LOG", Category: CategoryMath, Description: "Logarithm (base 10, or the given base)", Syntax: "=LOG(value, base)"},
	{ID: FnInt, Name: "INT", Category: CategoryMath, Description: "Integer part", Syntax: "=INT(value)"},
	{ID: FnSign, Name: "SIGN", Category: CategoryMath, Description: "Sign of number (-1, 0, 1)", Syntax: "=SIGN(value)"},
	{ID: FnTrunc, Name: "TRUNC", Category: CategoryMath, Description: "Truncate to decimals", Syntax: "=TRUNC(value, decimals)"},
	{ID: FnPi, Name: "PI", Category: CategoryMath, Description: "Pi constant", Syntax: "=PI()"},
	{ID: FnE, Name: "E", Category: CategoryMath, Description: "Euler's number", Syntax: "=E()"},
	{ID: FnRand, Name: "RAND", Category: CategoryMath, Description: "Random number in [0, 1)", Syntax: "=RAND()"},
	{ID: FnRandbetween, Name: "RANDBETWEEN", Category: CategoryMath, Description: "Random integer between bounds", Syntax: "=RANDBETWEEN(bottom, top)"},
	{ID: FnSum, Name: "SUM", Category: CategoryAggregation, Description: "Sum of values", Syntax: "=SUM(value1, value2, ...)", Aggregate: true},
	{ID: FnProduct, Name: "PRODUCT", Category: CategoryAggregation, Description: "Product of values", Syntax: "=PRODUCT(value1, value2, ...)", Aggregate: true},
	{ID: FnAverage, Name: "AVERAGE", Category: CategoryAggregation, Description: "Mean of values", Syntax: "=AVERAGE(value1, value2, ...)", Aggregate: true, Aliases: []string{"AVG"}},
	{ID: FnCount, Name: "COUNT", Category: CategoryAggregation, Description: "Count of numbers", Syntax: "=COUNT(value1, value2, ...)", Aggregate: true},
	{ID: FnCounta, Name: "COUNTA", Category: CategoryAggregation, Description: "Count non-empty", Syntax: "=COUNTA(value1, value2, ...)", Aggregate: true},
	{ID: FnCountblank, Name: "COUNTBLANK", Category: CategoryAggregation, Description: "Count empty values", Syntax: "=COUNTBLANK(array)", Aggregate: true},
	{ID: FnMin, Name: "MIN", Category: CategoryAggregation, Description: "Minimum value", Syntax: "=MIN(value1, value2, ...)", Aggregate: true},
	{ID: FnMax, Name: "MAX", Category: CategoryAggregation, Description: "Maximum value", Syntax: "=MAX(value1, value2, ...)", Aggregate: true},
	{ID: FnCountunique, Name: "COUNTUNIQUE", Category: CategoryAggregation, Description: "Count unique values", Syntax: "=COUNTUNIQUE(value1, value2, ...)", Aggregate: true},
	{ID: FnLarge, Name: "LARGE", Category: CategoryAggregation, Description: "Nth largest value", Syntax: "=LARGE(array, n)", Aggregate: true},
	{ID: FnSmall, Name: "SMALL", Category: CategoryAggregation, Description: "Nth smallest value", Syntax: "=SMALL(array, n)", Aggregate: true},
	{ID: FnRankEq, Name: "RANK.EQ", Category: CategoryAggregation, Description: "Rank of value", Syntax: "=RANK.EQ(value, array, order)", Aggregate: true, Aliases: []string{"RANK"}},
	{ID: FnMedian, Name: "MEDIAN", Category: CategoryStatistical, Description: "Median value", Syntax: "=MEDIAN(value1, value2, ...)", Aggregate: true},
	{ID: FnVarS, Name: "VAR.S", Category: CategoryStatistical, Description: "Sample variance", Syntax: "=VAR.S(value1, value2, ...)", Aggregate: true, Aliases: []string{"VAR"}},
	{ID: FnVarP, Name: "VAR.P", Category: CategoryStatistical, Description: "Population variance", Syntax: "=VAR.P(value1, value2, ...)", Aggregate: true, Aliases: []string{"VARP"}},
	{ID: FnStdevS, Name: "STDEV.S", Category: CategoryStatistical, Description: "Sample std deviation", Syntax: "=STDEV.S(value1, value2, ...)", Aggregate: true, Aliases: []string{"STDEV"}},
	{ID: FnStdevP, Name: "STDEV.P", Category: CategoryStatistical, Description: "Population std deviation", Syntax: "=STDEV.P(value1, value2, ...)", Aggregate: true, Aliases: []string{"STDEVP"}},
	{ID: FnPercentile, Name: "PERCENTILE", Category: CategoryStatistical, Description: "Percentile value", Syntax: "=PERCENTILE(array, k)", Aggregate: true},
	{ID: FnQuartile, Name: "QUARTILE", Category: CategoryStatistical, Description: "Quartile value", Syntax: "=QUARTILE(array, quart)", Aggregate: true},
	{ID: FnCorrel, Name: "CORREL", Category: CategoryStatistical, Description: "Correlation coefficient", Syntax: "=CORREL(array1, array2)", Aggregate: true},
	{ID: FnIf, Name: "IF", Category: CategoryLogical, Description: "Conditional value", Syntax: "=IF(condition, true_value, false_value)"},
	{ID: FnAnd, Name: "AND", Category: CategoryLogical, Description: "All conditions true", Syntax: "=AND(condition1, condition2, ...)"},
	{ID: FnOr, Name: "OR", Category: CategoryLogical, Description: "Any condition true", Syntax: "=OR(condition1, condition2, ...)"},
	{ID: FnNot, Name: "NOT", Category: CategoryLogical, Description: "Negate condition", Syntax: "=NOT(condition)"},
	{ID: FnXor, Name: "XOR", Category: CategoryLogical, Description: "Exclusive or", Syntax: "=XOR(condition1, condition2, ...)"},
	{ID: FnIferror, Name: "IFERROR", Category: CategoryLogical, Description: "Handle errors", Syntax: "=IFERROR(value, error_value)"},
	{ID: FnIfna, Name: "IFNA", Category: CategoryLogical, Description: "Handle #N/A errors", Syntax: "=IFNA(value, na_value)"},
	{ID: FnIfs, Name: "IFS", Category: CategoryLogical, Description: "Multiple conditions", Syntax: "=IFS(cond1, val1, cond2, val2, ...)"},
	{ID: FnTrue, Name: "TRUE", Category: CategoryLogical, Description: "Boolean TRUE", Syntax: "=TRUE()"},
	{ID: FnFalse, Name: "FALSE", Category: CategoryLogical, Description: "Boolean FALSE", Syntax: "=FALSE()"},
	{ID: FnConcat, Name: "CONCAT", Category: CategoryText, Description: "Join strings", Syntax: "=CONCAT(text1, text2, ...)", Aliases: []string{"CONCATENATE"}},
	{ID: FnUpper, Name: "UPPER", Category: CategoryText, Description: "Uppercase text", Syntax: "=UPPER(text)"},
	{ID: FnLower, Name: "LOWER", Category: CategoryText, Description: "Lowercase text", Syntax: "=LOWER(text)"},
	{ID: FnProper, Name: "PROPER", Category: CategoryText, Description: "Capitalize each word", Syntax: "=PROPER(text)"},
	{ID: FnTrim, Name: "TRIM", Category: CategoryText, Description: "Remove extra spaces", Syntax: "=TRIM(text)"},
	{ID: FnLen, Name: "LEN", Category: CategoryText, Description: "Text length", Syntax: "=LEN(text)"},
	{ID: FnLeft, Name: "LEFT", Category: CategoryText, Description: "Left characters", Syntax: "=LEFT(text, num_chars)"},
	{ID: FnRight, Name: "RIGHT", Category: CategoryText, Description: "Right characters", Syntax: "=RIGHT(text, num_chars)"},
	{ID: FnMid, Name: "MID", Category: CategoryText, Description: "Middle characters", Syntax: "=MID(text, start, num_chars)"},
	{ID: FnRept, Name: "REPT", Category: CategoryText, Description: "Repeat text", Syntax: "=REPT(text, times)"},
	{ID: FnReplace, Name: "REPLACE", Category: CategoryText, Description: "Replace characters", Syntax: "=REPLACE(text, start, num_chars, new_text)"},
	{ID: FnSubstitute, Name: "SUBSTITUTE", Category: CategoryText, Description: "Substitute text", Syntax: "=SUBSTITUTE(text, old_text, new_text, instance)"},
	{ID: FnFind, Name: "FIND", Category: CategoryText, Description: "Find text position", Syntax: "=FIND(find_text, within_text, start)"},
	{ID: FnSearch, Name: "SEARCH", Category: CategoryText, Description: "Find text (case insensitive)", Syntax: "=SEARCH(find_text, within_text, start)"},
	{ID: FnText, Name: "TEXT", Category: CategoryText, Description: "Format number as text", Syntax: "=TEXT(value, format)"},
	{ID: FnValue, Name: "VALUE", Category: CategoryText, Description: "Convert text to number", Syntax: "=VALUE(text)"},
	{ID: FnToday, Name: "TODAY", Category: CategoryDate, Description: "Current date", Syntax: "=TODAY()"},
	{ID: FnNow, Name: "NOW", Category: CategoryDate, Description: "Current date and time", Syntax: "=NOW()"},
	{ID: FnDate, Name: "DATE", Category: CategoryDate, Description: "Create date", Syntax: "=DATE(year, month, day)"},
	{ID: FnTime, Name: "TIME", Category: CategoryDate, Description: "Create time", Syntax: "=TIME(hour, minute, second)"},
	{ID: FnYear, Name: "YEAR", Category: CategoryDate, Description: "Extract year", Syntax: "=YEAR(date)"},
	{ID: FnMonth, Name: "MONTH", Category: CategoryDate, Description: "Extract month", Syntax: "=MONTH(date)"},
	{ID: FnDay, Name: "DAY", Category: CategoryDate, Description: "Extract day", Syntax: "=DAY(date)"},
	{ID: FnHour, Name: "HOUR", Category: CategoryDate, Description: "Extract hour", Syntax: "=HOUR(time)"},
	{ID: FnMinute, Name: "MINUTE", Category: CategoryDate, Description: "Extract minute", Syntax: "=MINUTE(time)"},
	{ID: FnSecond, Name: "SECOND", Category: CategoryDate, Description: "Extract second", Syntax: "=SECOND(time)"},
	{ID: FnDays, Name: "DAYS", Category: CategoryDate, Description: "Days between dates", Syntax: "=DAYS(end_date, start_date)"},
	{ID: FnWeekday, Name: "WEEKDAY", Category: CategoryDate, Description: "Day of week", Syntax: "=WEEKDAY(date, type)"},
	{ID: FnEdate, Name: "EDATE", Category: CategoryDate, Description: "Add months to date", Syntax: "=EDATE(date, months)"},
	{ID: FnEomonth, Name: "EOMONTH", Category: CategoryDate, Description: "End of month", Syntax: "=EOMONTH(date, months)"},
	{ID: FnDatedif, Name: "DATEDIF", Category: CategoryDate, Description: "Date difference", Syntax: "=DATEDIF(start, end, unit)"},
	{ID: FnYearfrac, Name: "YEARFRAC", Category: CategoryDate, Description: "Year fraction", Syntax: "=YEARFRAC(start, end, basis)"},
	{ID: FnWorkday, Name: "WORKDAY", Category: CategoryDate, Description: "Add working days", Syntax: "=WORKDAY(start, days, holidays)"},
	{ID: FnNetworkdays, Name: "NETWORKDAYS", Category: CategoryDate, Description: "Working days between", Syntax: "=NETWORKDAYS(start, end, holidays)"},
	{ID: FnMatch, Name: "MATCH", Category: CategoryLookup, Description: "Find position", Syntax: "=MATCH(lookup_value, array, type)"},
	{ID: FnIndex, Name: "INDEX", Category: CategoryLookup, Description: "Value by position", Syntax: "=INDEX(array, row, col)"},
	{ID: FnXlookup, Name: "XLOOKUP", Category: CategoryLookup, Description: "Extended lookup", Syntax: "=XLOOKUP(lookup, lookup_array, return_array, not_found)"},
	{ID: FnVlookup, Name: "VLOOKUP", Category: CategoryLookup, Description: "Vertical lookup", Syntax: "=VLOOKUP(lookup, table, col, exact)"},
	{ID: FnHlookup, Name: "HLOOKUP", Category: CategoryLookup, Description: "Horizontal lookup", Syntax: "=HLOOKUP(lookup, table, row, exact)"},
	{ID: FnChoose, Name: "CHOOSE", Category: CategoryLookup, Description: "Pick by index", Syntax: "=CHOOSE(index, value1, value2, ...)"},
	{ID: FnIndirect, Name: "INDIRECT", Category: CategoryLookup, Description: "Reference from text", Syntax: "=INDIRECT(ref_text)"},
	{ID: FnRows, Name: "ROWS", Category: CategoryLookup, Description: "Number of rows", Syntax: "=ROWS(array)"},
	{ID: FnColumns, Name: "COLUMNS", Category: CategoryLookup, Description: "Number of columns", Syntax: "=COLUMNS(array)"},
	{ID: FnOffset, Name: "OFFSET", Category: CategoryLookup, Description: "Offset into an array", Syntax: "=OFFSET(reference, rows, cols, height, width)"},
	{ID: FnRow, Name: "ROW", Category: CategoryLookup, Description: "Current row number", Syntax: "=ROW(reference)"},
	{ID: FnColumn, Name: "COLUMN", Category: CategoryLookup, Description: "Column number", Syntax: "=COLUMN(reference)"},
	{ID: FnAddress, Name: "ADDRESS", Category: CategoryLookup, Description: "Cell address as text", Syntax: "=ADDRESS(row, column, abs_num, a1, sheet)"},
	{ID: FnPmt, Name: "PMT", Category: CategoryFinancial, Description: "Loan payment", Syntax: "=PMT(rate, nper, pv, fv, type)"},
	{ID: FnFv, Name: "FV", Category: CategoryFinancial, Description: "Future value", Syntax: "=FV(rate, nper, pmt, pv, type)"},
	{ID: FnPv, Name: "PV", Category: CategoryFinancial, Description: "Present value", Syntax: "=PV(rate, nper, pmt, fv, type)"},
	{ID: FnNpv, Name: "NPV", Category: CategoryFinancial, Description: "Net present value", Syntax: "=NPV(rate, value1, value2, ...)"},
	{ID: FnIrr, Name: "IRR", Category: CategoryFinancial, Description: "Internal rate of return", Syntax: "=IRR(values, guess)"},
	{ID: FnNper, Name: "NPER", Category: CategoryFinancial, Description: "Number of periods", Syntax: "=NPER(rate, pmt, pv, fv, type)"},
	{ID: FnRate, Name: "RATE", Category: CategoryFinancial, Description: "Interest rate", Syntax: "=RATE(nper, pmt, pv, fv, type, guess)"},
	{ID: FnXnpv, Name: "XNPV", Category: CategoryFinancial, Description: "NPV with dates", Syntax: "=XNPV(rate, values, dates)"},
	{ID: FnXirr, Name: "XIRR", Category: CategoryFinancial, Description: "IRR with dates", Syntax: "=XIRR(values, dates, guess)"},
	{ID: FnMirr, Name: "MIRR", Category: CategoryFinancial, Description: "Modified IRR", Syntax: "=MIRR(values, finance_rate, reinvest_rate)"},
	{ID: FnSln, Name: "SLN", Category: CategoryFinancial, Description: "Straight-line depreciation", Syntax: "=SLN(cost, salvage, life)"},
	{ID: FnDb, Name: "DB", Category: CategoryFinancial, Description: "Declining balance depreciation", Syntax: "=DB(cost, salvage, life, period, month)"},
	{ID: FnDdb, Name: "DDB", Category: CategoryFinancial, Description: "Double declining balance", Syntax: "=DDB(cost, salvage, life, period, factor)"},
	{ID: FnPpmt, Name: "PPMT", Category: CategoryFinancial, Description: "Principal part of a payment", Syntax: "=PPMT(rate, per, nper, pv, fv, type)"},
	{ID: FnIpmt, Name: "IPMT", Category: CategoryFinancial, Description: "Interest part of a payment", Syntax: "=IPMT(rate, per, nper, pv, fv, type)"},
	{ID: FnEffect, Name: "EFFECT", Category: CategoryFinancial, Description: "Effective annual rate", Syntax: "=EFFECT(nominal_rate, npery)"},
	{ID: FnNominal, Name: "NOMINAL", Category: CategoryFinancial, Description: "Nominal annual rate", Syntax: "=NOMINAL(effect_rate, npery)"},
	{ID: FnPricedisc, Name: "PRICEDISC", Category: CategoryFinancial, Description: "Price of a discounted security", Syntax: "=PRICEDISC(settlement, maturity, discount, redemption, basis)"},
	{ID: FnYielddisc, Name: "YIELDDISC", Category: CategoryFinancial, Description: "Yield of a discounted security", Syntax: "=YIELDDISC(settlement, maturity, price, redemption, basis)"},
	{ID: FnAccrint, Name: "ACCRINT", Category: CategoryFinancial, Description: "Accrued interest", Syntax: "=ACCRINT(issue, first_interest, settlement, rate, par, frequency, basis)"},
	{ID: FnSin, Name: "SIN", Category: CategoryTrigonometric, Description: "Sine", Syntax: "=SIN(angle)"},
	{ID: FnCos, Name: "COS", Category: CategoryTrigonometric, Description: "Cosine", Syntax: "=COS(angle)"},
	{ID: FnTan, Name: "TAN", Category: CategoryTrigonometric, Description: "Tangent", Syntax: "=TAN(angle)"},
	{ID: FnAsin, Name: "ASIN", Category: CategoryTrigonometric, Description: "Arcsine", Syntax: "=ASIN(value)"},
	{ID: FnAcos, Name: "ACOS", Category: CategoryTrigonometric, Description: "Arccosine", Syntax: "=ACOS(value)"},
	{ID: FnAtan, Name: "ATAN", Category: CategoryTrigonometric, Description: "Arctangent", Syntax: "=ATAN(value)"},
	{ID: FnSinh, Name: "SINH", Category: CategoryTrigonometric, Description: "Hyperbolic sine", Syntax: "=SINH(value)"},
	{ID: FnCosh, Name: "COSH", Category: CategoryTrigonometric, Description: "Hyperbolic cosine", Syntax: "=COSH(value)"},
	{ID: FnTanh, Name: "TANH", Category: CategoryTrigonometric, Description: "Hyperbolic tangent", Syntax: "=TANH(value)"},
	{ID: FnRadians, Name: "RADIANS", Category: CategoryTrigonometric, Description: "Degrees to radians", Syntax: "=RADIANS(degrees)"},
	{ID: FnDegrees, Name: "DEGREES", Category: CategoryTrigonometric, Description: "Radians to degrees", Syntax: "=DEGREES(radians)"},
	{ID: FnIsblank, Name: "ISBLANK", Category: CategoryInformation, Description: "Is cell empty", Syntax: "=ISBLANK(value)"},
	{ID: FnIsna, Name: "ISNA", Category: CategoryInformation, Description: "Is #N/A error", Syntax: "=ISNA(value)"},
	{ID: FnIserror, Name: "ISERROR", Category: CategoryInformation, Description: "Is error value", Syntax: "=ISERROR(value)"},
	{ID: FnIsnumber, Name: "ISNUMBER", Category: CategoryInformation, Description: "Is numeric", Syntax: "=ISNUMBER(value)"},
	{ID: FnIstext, Name: "ISTEXT", Category: CategoryInformation, Description: "Is text", Syntax: "=ISTEXT(value)"},
	{ID: FnIslogical, Name: "ISLOGICAL", Category: CategoryInformation, Description: "Is boolean", Syntax: "=ISLOGICAL(value)"},
	{ID: FnIseven, Name: "ISEVEN", Category: CategoryInformation, Description: "Is even number", Syntax: "=ISEVEN(value)"},
	{ID: FnIsodd, Name: "ISODD", Category: CategoryInformation, Description: "Is odd number", Syntax: "=ISODD(value)"},
	{ID: FnIsref, Name: "ISREF", Category: CategoryInformation, Description: "Is reference", Syntax: "=ISREF(value)"},
	{ID: FnIsformula, Name: "ISFORMULA", Category: CategoryInformation, Description: "Is formula", Syntax: "=ISFORMULA(value)"},
	{ID: FnNa, Name: "NA", Category: CategoryInformation, Description: "Return #N/A", Syntax: "=NA()"},
	{ID: FnType, Name: "TYPE", Category: CategoryInformation, Description: "Type of value", Syntax: "=TYPE(value)"},
	{ID: FnN, Name: "N", Category: CategoryInformation, Description: "Convert to number", Syntax: "=N(value)"},
	{ID: FnSumif, Name: "SUMIF", Category: CategoryConditional, Description: "Sum with condition", Syntax: "=SUMIF(range, criteria, sum_range)", Aggregate: true},
	{ID: FnSumifs, Name: "SUMIFS", Category: CategoryConditional, Description: "Sum with conditions", Syntax: "=SUMIFS(sum_range, range1, crit1, ...)", Aggregate: true},
	{ID: FnCountif, Name: "COUNTIF", Category: CategoryConditional, Description: "Count with condition", Syntax: "=COUNTIF(range, criteria)", Aggregate: true},
	{ID: FnCountifs, Name: "COUNTIFS", Category: CategoryConditional, Description: "Count with conditions", Syntax: "=COUNTIFS(range1, crit1, range2, crit2, ...)", Aggregate: true},
	{ID: FnAverageif, Name: "AVERAGEIF", Category: CategoryConditional, Description: "Average with condition", Syntax: "=AVERAGEIF(range, criteria, avg_range)", Aggregate: true},
	{ID: FnAverageifs, Name: "AVERAGEIFS", Category: CategoryConditional, Description: "Average with conditions", Syntax: "=AVERAGEIFS(avg_range, range1, crit1, ...)", Aggregate: true},
	{ID: FnMaxifs, Name: "MAXIFS", Category: CategoryConditional, Description: "Max with conditions", Syntax: "=MAXIFS(max_range, criteria_range, criteria)", Aggregate: true},
	{ID: FnMinifs, Name: "MINIFS", Category: CategoryConditional, Description: "Min with conditions", Syntax: "=MINIFS(min_range, criteria_range, criteria)", Aggregate: true},
	{ID: FnUnique, Name: "UNIQUE", Category: CategoryArray, Description: "Unique values", Syntax: "=UNIQUE(array)"},
	{ID: FnSort, Name: "SORT", Category: CategoryArray, Description: "Sort array", Syntax: "=SORT(array, sort_index, order)"},
	{ID: FnFilter, Name: "FILTER", Category: CategoryArray, Description: "Filter array", Syntax: "=FILTER(array, include, if_empty)"},
	{ID: FnSequence, Name: "SEQUENCE", Category: CategoryArray, Description: "Generate sequence", Syntax: "=SEQUENCE(rows, cols, start, step)"},
	{ID: FnRandarray, Name: "RANDARRAY", Category: CategoryArray, Description: "Random array", Syntax: "=RANDARRAY(rows, cols, min, max)"},
	{ID: FnLet, Name: "LET", Category: CategoryAdvanced, Description: "Define variables", Syntax: "=LET(name1, val1, name2, val2, ..., calc)"},
	{ID: FnLambda, Name: "LAMBDA", Category: CategoryAdvanced, Description: "Inline function", Syntax: "=LAMBDA(param, ..., body)(args)"},
	{ID: FnSwitch, Name: "SWITCH", Category: CategoryAdvanced, Description: "Switch case", Syntax: "=SWITCH(expr, case1, val1, case2, val2, ..., default)"},
	{ID: FnVariance, Name: "VARIANCE", Category: CategoryDomain, Description: "Actual vs budget variance", Syntax: "=VARIANCE(actual, budget)"},
	{ID: FnVariancePct, Name: "VARIANCE_PCT", Category: CategoryDomain, Description: "Variance percentage", Syntax: "=VARIANCE_PCT(actual, budget)"},
	{ID: FnVarianceStatus, Name: "VARIANCE_STATUS", Category: CategoryDomain, Description: "Variance status", Syntax: "=VARIANCE_STATUS(actual, budget)"},
	{ID: FnBreakevenUnits, Name: "BREAKEVEN_UNITS", Category: CategoryDomain, Description: "Break-even units", Syntax: "=BREAKEVEN_UNITS(fixed, price, variable)"},
	{ID: FnBreakevenRevenue, Name: "BREAKEVEN_REVENUE", Category: CategoryDomain, Description: "Break-even revenue", Syntax: "=BREAKEVEN_REVENUE(fixed, margin_pct)"},
	{ID: FnScenario, Name: "SCENARIO", Category: CategoryDomain, Description: "Scenario override lookup", Syntax: "=SCENARIO(scenario_name, variable_name)"},
}
// functionIndex maps upper-cased names and aliases to definitions
var functionIndex = buildFunctionIndex()

func buildFunctionIndex() map[string]*FunctionDef {
	index := make(map[string]*FunctionDef, len(functionDefs)+16)
	for i := range functionDefs {
		def := &functionDefs[i]
		index[def.Name] = def
		for _, alias := range def.Aliases {
			index[alias] = def
		}
	}
	return index
}

// LookupFunction finds a built-in by name or alias, case-insensitively
func LookupFunction(name string) (*FunctionDef, bool) {
	def, ok := functionIndex[strings.ToUpper(name)]
	return def, ok
}

// Functions returns every built-in definition sorted by name
func Functions() []FunctionDef {
	defs := make([]FunctionDef, len(functionDefs))
	copy(defs, functionDefs)
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// FunctionsByCategory returns the built-ins of one category sorted by name
func FunctionsByCategory(category Category) []FunctionDef {
	var defs []FunctionDef
	for _, def := range Functions() {
		if def.Category == category {
			defs = append(defs, def)
		}
	}
	return defs
}

func unknownFunctionError(name string) error {
	names := make([]string, 0, len(functionIndex))
	for known := range functionIndex {
		names = append(names, known)
	}
	return NewEvalError(ErrorKindUnknownReference, "Unknown function: %s%s", name, suggestion(name, names))
}

// suggestion returns a "did you mean" hint for the closest candidate
// within edit distance 2, or an empty string
func suggestion(name string, candidates []string) string {
	best := ""
	bestDistance := 3
	for _, candidate := range candidates {
		d := levenshtein.Distance(strings.ToLower(name), strings.ToLower(candidate), nil)
		if d < bestDistance || (d == bestDistance && candidate < best) {
			best = candidate
			bestDistance = d
		}
	}
	if best == "" || bestDistance > 2 {
		return ""
	}
	return " (did you mean \"" + best + "\"?)"
}
