package anonymizer

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"notes-anonymizer/internal/metrics"
)

func newTestAnonymizer(t *testing.T, m *metrics.Metrics) *Anonymizer {
	t.Helper()
	lib, err := LoadLibrary(time.Second)
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}
	return New(lib, nil, m)
}

func mustAnonymize(t *testing.T, a *Anonymizer, text string) *Result {
	t.Helper()
	res, err := a.Anonymize(text)
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	return res
}

func entryStrings(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.String())
	}
	return out
}

func assertEntries(t *testing.T, res *Result, c Category, want ...string) {
	t.Helper()
	got := entryStrings(res.Log.Entries(c))
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("%s entries\n  want: %q\n   got: %q", c, want, got)
	}
}

func TestAnonymize_SinglePatientAllCategories(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	input := "Dr. Alice Smith, 42-year-old, lives at 221 Baker Street, London, NY, phone 555-123-4567."

	res := mustAnonymize(t, a, input)

	want := "1.1, 1.2-year-old, lives at 1.3, phone 1.6."
	if res.Text != want {
		t.Errorf("redacted text\n  want: %q\n   got: %q", want, res.Text)
	}
	assertEntries(t, res, FullName, "1.1: Dr. Alice Smith")
	assertEntries(t, res, DOBAge, "1.2: 42")
	assertEntries(t, res, Address, "1.3: 221 Baker Street, London, NY")
	assertEntries(t, res, RefName)
	assertEntries(t, res, Phone, "1.6: 555-123-4567")

	for _, key := range []string{"Alice", "Smith", "Dr. Alice", "Dr. Smith"} {
		if n, ok := res.Registry.Lookup(key); !ok || n != 1 {
			t.Errorf("registry[%q] = %d, %v; want 1, true", key, n, ok)
		}
	}
}

func TestAnonymize_MappingLogRendering(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "Dr. Alice Smith, 42-year-old, lives at 221 Baker Street, London, NY, phone 555-123-4567.")

	want := "Anonymizing the full names (as x.1):\n" +
		"1.1: Dr. Alice Smith\n" +
		"\n" +
		"Anonymizing the Ages/DoBs (as x.2):\n" +
		"1.2: 42\n" +
		"\n" +
		"Anonymizing the Addresses With- or Without Postal Codes (as x.3):\n" +
		"1.3: 221 Baker Street, London, NY\n" +
		"\n" +
		"Anonymizing the referenced Firstnames/Lastnames (as x.4):\n" +
		"No match found.\n" +
		"\n" +
		"Anonymizing National Insurance Numbers (NIN) (as x.5):\n" +
		"No match found.\n" +
		"\n" +
		"Anonymizing Phone Numbers (as x.6):\n" +
		"1.6: 555-123-4567\n" +
		"\n" +
		"Anonymizing Email Addresses (as x.7):\n" +
		"No match found.\n"
	if got := res.Log.String(); got != want {
		t.Errorf("mapping log\n  want: %q\n   got: %q", want, got)
	}
}

func TestAnonymize_ReferenceNamesReusePrefix(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	input := "Dr. Alice Smith, a 42-year-old patient. Alice said she felt better. Dr. Smith confirmed the plan."

	res := mustAnonymize(t, a, input)

	want := "1.1, a 1.2-year-old patient. 1.4 said she felt better. 1.4 confirmed the plan."
	if res.Text != want {
		t.Errorf("redacted text\n  want: %q\n   got: %q", want, res.Text)
	}
	// Titled keys are replaced first; the bare key follows.
	assertEntries(t, res, RefName, "1.4: Dr. Smith", "1.4: Alice")
}

func TestAnonymize_TwoPatients(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	input := "Mr. Bob Lee, and Ms. Carol Park, attended. Bob arrived first; Carol later."

	res := mustAnonymize(t, a, input)

	want := "1.1, and 2.1, attended. 1.4 arrived first; 2.4 later."
	if res.Text != want {
		t.Errorf("redacted text\n  want: %q\n   got: %q", want, res.Text)
	}
	assertEntries(t, res, FullName, "1.1: Mr. Bob Lee", "2.1: Ms. Carol Park")
	assertEntries(t, res, RefName, "1.4: Bob", "2.4: Carol")
}

func TestAnonymize_ReferenceLogSortedByPrefix(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	// Carol's titled key fires before Bob's bare key, but the log is ordered by prefix.
	input := "Mr. Bob Lee, and Ms. Carol Park, attended. Ms. Park called; Bob waited."

	res := mustAnonymize(t, a, input)

	assertEntries(t, res, RefName, "1.4: Bob", "2.4: Ms. Park")
	if res.Text != "1.1, and 2.1, attended. 2.4 called; 1.4 waited." {
		t.Errorf("unexpected text: %q", res.Text)
	}
}

func TestAnonymize_NoEmailSection(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "Call 555.123.4567 about the results.")

	if got := res.Log.Entries(Email); len(got) != 0 {
		t.Errorf("expected no email entries, got %v", got)
	}
	if !strings.Contains(res.Log.String(), "Anonymizing Email Addresses (as x.7):\nNo match found.\n") {
		t.Errorf("email section should read %q:\n%s", NoMatch, res.Log.String())
	}
	if res.Text != "Call 1.6 about the results." {
		t.Errorf("unexpected text: %q", res.Text)
	}
}

func TestAnonymize_DOBAndAgeNumberedByPosition(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "DoB: 05-12-1980 and aged 45.")

	if res.Text != "DoB: 1.2 and aged 2.2." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	assertEntries(t, res, DOBAge, "1.2: 05-12-1980", "2.2: 45")
}

func TestAnonymize_HyphenatedNames(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "Mr. Jean-Paul Martin-Dubois, was admitted.")

	if res.Text != "1.1, was admitted." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	assertEntries(t, res, FullName, "1.1: Mr. Jean-Paul Martin-Dubois")

	want := []NameKey{
		{Text: "Jean"},
		{Text: "Dubois"},
		{Text: "Mr. Jean", Titled: true},
		{Text: "Mr. Dubois", Titled: true},
	}
	got := res.Registry.Keys()
	if len(got) != len(want) {
		t.Fatalf("registry keys: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("registry key %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnonymize_RepeatedFullNameGetsPositionalIDs(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "Dr. Alice Smith, first visit. Dr. Alice Smith, second visit.")

	if res.Text != "1.1, first visit. 2.1, second visit." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	assertEntries(t, res, FullName, "1.1: Dr. Alice Smith", "2.1: Dr. Alice Smith")
	if n, _ := res.Registry.Lookup("Alice"); n != 1 {
		t.Errorf("registry should keep the first prefix, got %d", n)
	}
}

func TestAnonymize_SharedSurnameFirstWriteWins(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	input := "Dr. Alice Smith, saw Mr. John Smith, today. Smith was discharged."

	res := mustAnonymize(t, a, input)

	if res.Text != "1.1, saw 2.1, today. 1.4 was discharged." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if n, _ := res.Registry.Lookup("Smith"); n != 1 {
		t.Errorf("Smith should resolve to the earlier patient, got %d", n)
	}
	if n, _ := res.Registry.Lookup("Mr. Smith"); n != 2 {
		t.Errorf("Mr. Smith is a distinct key and should resolve to 2, got %d", n)
	}
}

func TestAnonymize_TitledReferenceNotSplit(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "Mr. Alex Stone, arrived. Later Mr. Alex returned and Alex smiled.")

	want := "1.1, arrived. Later 1.4 returned and 1.4 smiled."
	if res.Text != want {
		t.Errorf("redacted text\n  want: %q\n   got: %q", want, res.Text)
	}
	if strings.Contains(res.Text, "Mr.") {
		t.Error("titled mention was only partially rewritten")
	}
	assertEntries(t, res, RefName, "1.4: Mr. Alex", "1.4: Alex")
}

func TestAnonymize_ReferenceNameIsWholeWord(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "Ms. Ann Lee, reviewed the Annual report with Ann.")

	if res.Text != "1.1, reviewed the Annual report with 1.4." {
		t.Errorf("unexpected text: %q", res.Text)
	}
}

func TestAnonymize_NINPhoneEmail(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	input := "NI number QQ 123456 C, mobile 555.987.6543, email jo.bloggs@nhs.co.uk."

	res := mustAnonymize(t, a, input)

	if res.Text != "NI number 1.5, mobile 1.6, email 1.7." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	assertEntries(t, res, NIN, "1.5: QQ 123456 C")
	assertEntries(t, res, Phone, "1.6: 555.987.6543")
	assertEntries(t, res, Email, "1.7: jo.bloggs@nhs.co.uk")
}

func TestAnonymize_EmptyInput(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "")

	if res.Text != "" {
		t.Errorf("expected empty text, got %q", res.Text)
	}
	if res.Log.Len() != 0 {
		t.Errorf("expected no entries, got %d", res.Log.Len())
	}
	if got := len(res.Log.Sections()); got != len(PassOrder) {
		t.Errorf("expected %d sections, got %d", len(PassOrder), got)
	}
}

func TestAnonymize_SectionsFollowPassOrder(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, "nothing to see")

	sections := res.Log.Sections()
	for i, c := range PassOrder {
		if sections[i].Category != c {
			t.Errorf("section %d: got %s, want %s", i, sections[i].Category, c)
		}
	}
}

func TestAnonymize_ReusableAcrossDocuments(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	first := mustAnonymize(t, a, "Dr. Alice Smith, called 555-123-4567.")
	second := mustAnonymize(t, a, "Mr. Bob Lee, called 555-765-4321. Alice was not mentioned.")

	if first.Text != "1.1, called 1.6." {
		t.Errorf("first: %q", first.Text)
	}
	// No state leaks: counters restart and Alice is unknown to the second run.
	if second.Text != "1.1, called 1.6. Alice was not mentioned." {
		t.Errorf("second: %q", second.Text)
	}
}

func TestAnonymize_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	a := newTestAnonymizer(t, m)
	mustAnonymize(t, a, "Dr. Alice Smith, 42-year-old. Alice phoned 555-123-4567 and 555-123-4568.")

	if got := m.Replacements("FULL_NAME"); got != 1 {
		t.Errorf("FULL_NAME replacements: got %d, want 1", got)
	}
	if got := m.Replacements("PHONE"); got != 2 {
		t.Errorf("PHONE replacements: got %d, want 2", got)
	}
	if got := m.Replacements("REF_NAME"); got != 1 {
		t.Errorf("REF_NAME replacements: got %d, want 1", got)
	}
	if m.Runs.Load() != 1 {
		t.Errorf("Runs: got %d, want 1", m.Runs.Load())
	}
	if s := m.Snapshot(); s.Latency.RunMs.Count != 1 {
		t.Errorf("run latency count: got %d, want 1", s.Latency.RunMs.Count)
	}
}

// longCapitalisedRun is address-shaped text with no state code, the worst
// case for the address recognizer's backtracking.
func longCapitalisedRun(words int) string {
	return "Patient lives in " + strings.Repeat("Alpha ", words)
}

func TestAnonymize_TimeoutErrorOmitsDocument(t *testing.T) {
	lib, err := LoadLibrary(10 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	a := New(lib, nil, m)

	_, err = a.Anonymize(longCapitalisedRun(12000))
	if err == nil {
		t.Fatal("expected the address pass to time out")
	}
	if !errors.Is(err, ErrMatchTimeout) {
		t.Errorf("expected ErrMatchTimeout, got %v", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "Alpha") || strings.Contains(msg, "Patient") {
		t.Errorf("error leaks document text: %.200s", msg)
	}
	if strings.Contains(msg, "\n") || !strings.HasPrefix(msg, "ADDRESS pass:") {
		t.Errorf("unexpected error text: %q", msg)
	}
	if m.Failures.Load() != 1 || m.Runs.Load() != 0 {
		t.Errorf("failures=%d runs=%d, want 1 and 0", m.Failures.Load(), m.Runs.Load())
	}
}

func TestAnonymize_NoTimeoutByDefault(t *testing.T) {
	lib, err := LoadLibrary(0)
	if err != nil {
		t.Fatal(err)
	}
	input := longCapitalisedRun(800)
	res, err := New(lib, nil, nil).Anonymize(input)
	if err != nil {
		t.Fatalf("Anonymize without a timeout: %v", err)
	}
	if res.Text != input {
		t.Errorf("text without PII should be unchanged")
	}
}

// --- quantified invariants over a richer document ---

const wardNotes = `Ward round, 14 March.
Dr. Helen Carter, reviewed Mr. Omar Haddad, a 67-year-old admitted from 4 Elm Road, Leeds, UK, yesterday.
Mr. Haddad reports chest pain. Contact 555-201-3344 or omar.h@example.org.
Ms. Priya Nair, (DoB: 03/11/1990) lives in Flat Court, PO Box 12, York, NY, and was aged 33 at referral.
NI number AB 123456 C recorded. Helen will follow up; Priya to call 555.777.8888.
`

var identifierRe = regexp.MustCompile(`\b(\d+)\.([1-7])\b`)

func TestInvariant_EveryIdentifierLogged(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, wardNotes)

	logged := make(map[string]bool)
	for _, s := range res.Log.Sections() {
		for _, e := range s.Entries {
			logged[e.ID.String()] = true
		}
	}
	for _, m := range identifierRe.FindAllString(res.Text, -1) {
		if !logged[m] {
			t.Errorf("identifier %s in output has no mapping entry", m)
		}
	}
}

func TestInvariant_CountersGapFree(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, wardNotes)

	for _, c := range Categories {
		if c == RefName {
			continue
		}
		for i, e := range res.Log.Entries(c) {
			if e.ID.N != i+1 {
				t.Errorf("%s entry %d has id %s, want %d%s", c, i, e.ID, i+1, c.Suffix())
			}
			if e.ID.Category != c {
				t.Errorf("%s entry carries category %s", c, e.ID.Category)
			}
		}
	}
	if len(res.Log.Entries(FullName)) != 3 {
		t.Errorf("expected 3 full names, got %v", entryStrings(res.Log.Entries(FullName)))
	}
}

func TestInvariant_NoRegisteredNameSurvives(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, wardNotes)

	for _, key := range res.Registry.Keys() {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(key.Text) + `\b`)
		if re.MatchString(res.Text) {
			t.Errorf("registered name %q still present in output", key.Text)
		}
	}
}

func TestInvariant_OriginalsAreLiteralSubstrings(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	res := mustAnonymize(t, a, wardNotes)

	for _, s := range res.Log.Sections() {
		for _, e := range s.Entries {
			if !strings.Contains(wardNotes, e.Original) {
				t.Errorf("%s original %q not found in input", e.ID, e.Original)
			}
		}
	}
}

func TestInvariant_ReinsertingOriginalsRestoresInput(t *testing.T) {
	a := newTestAnonymizer(t, nil)
	// One reference key per person, so every .4 id maps to a single original.
	input := "Dr. Helen Carter, (aged 52) met Mr. Omar Haddad, at 4 Elm Road, Leeds, UK, then Omar phoned 555-201-3344 from QQ 123456 C via o.h@example.org."
	res := mustAnonymize(t, a, input)

	originals := make(map[string]string)
	for _, s := range res.Log.Sections() {
		for _, e := range s.Entries {
			if prev, dup := originals[e.ID.String()]; dup && prev != e.Original {
				t.Fatalf("id %s maps to both %q and %q", e.ID, prev, e.Original)
			}
			originals[e.ID.String()] = e.Original
		}
	}

	restored := identifierRe.ReplaceAllStringFunc(res.Text, func(tok string) string {
		if orig, ok := originals[tok]; ok {
			return orig
		}
		return tok
	})
	if restored != input {
		t.Errorf("reconstruction differs\n  want: %q\n   got: %q", input, restored)
	}
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Dr. Alice Smith", []string{"Dr.", "Alice", "Smith"}},
		{"Mr. Jean-Paul Martin-Dubois", []string{"Mr.", "Jean", "Paul", "Martin", "Dubois"}},
		{"Ms. Anne-Marie", []string{"Ms.", "Anne", "Marie"}},
		{"Dr.", []string{"Dr."}},
	}
	for _, c := range cases {
		got := splitName(c.in)
		if strings.Join(got, ",") != strings.Join(c.want, ",") {
			t.Errorf("splitName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIdentifierString(t *testing.T) {
	for n, c := range map[int]Category{1: FullName, 12: Email, 3: RefName} {
		id := Identifier{N: n, Category: c}
		want := strconv.Itoa(n) + "." + strconv.Itoa(int(c))
		if id.String() != want {
			t.Errorf("Identifier{%d,%s}.String() = %q, want %q", n, c, id.String(), want)
		}
		if strings.ContainsAny(id.String(), " \t\n") {
			t.Errorf("identifier %q contains whitespace", id)
		}
	}
}
