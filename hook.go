package spf

// Hook allows a caller to intercept the SPF check process at various
// points through its execution, e.g. to trace or log a check as it
// runs.
type Hook interface {
	// Record is called after the SPF TXT lookup for domain, before the
	// record is parsed, with the selected record ("" when none was
	// selected).
	Record(record, domain string)
	// RecordResult is called once a domain's check_host() evaluation
	// (including any include/redirect recursion within it) has
	// produced a final ResultType.
	RecordResult(domain string, ec *Context, result ResultType)
	// Macro is called after a macro-string has been expanded.
	Macro(before, after string, err error)
	// Mechanism is called after a mechanism has produced a result.
	Mechanism(domain string, index int, mechanism Mechanism, result ResultType)
	// Redirect is called before a "redirect" modifier is followed.
	Redirect(target string)
}
