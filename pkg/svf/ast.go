package svf

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed SVF file.
type File struct {
	Commands []*Command `@@*`
}

// Command is one semicolon-terminated SVF statement.
type Command struct {
	Pos lexer.Position

	Scan      *Scan      `  @@`
	EndState  *EndState  `| @@`
	State     *StateCmd  `| @@`
	RunTest   *RunTest   `| @@`
	Frequency *Frequency `| @@`
	TRST      *TRST      `| @@`
}

// Scan covers SIR/SDR and the header/trailer definitions HIR/HDR/TIR/TDR.
// Example: SDR 32 TDI (00000000) TDO (4BA00477) MASK (0FFFFFFF);
type Scan struct {
	Kind   string   `@( "SIR" | "SDR" | "HIR" | "HDR" | "TIR" | "TDR" )`
	Length int      `@Number`
	Fields []*Field `@@* Semicolon`
}

// Field is one named hex vector of a scan.
type Field struct {
	Name  string `@( "TDI" | "TDO" | "MASK" | "SMASK" )`
	Value string `@Hex`
}

// EndState is ENDIR or ENDDR.
type EndState struct {
	Kind  string `@( "ENDIR" | "ENDDR" )`
	State string `@Ident Semicolon`
}

// StateCmd walks the TAP through the listed stable states.
type StateCmd struct {
	Path []string `"STATE" @Ident+ Semicolon`
}

// RunTest is RUNTEST [run_state] count unit [min SEC] [MAXIMUM max SEC]
// [ENDSTATE end_state].
type RunTest struct {
	RunState string         `"RUNTEST" @Ident?`
	Items    []*RunTestItem `@@+`
	EndState string         `( "ENDSTATE" @Ident )? Semicolon`
}

// RunTestItem is a count of clocks or a time bound.
type RunTestItem struct {
	Maximum bool    `@"MAXIMUM"?`
	Value   float64 `@Number`
	Unit    string  `@( "TCK" | "SCK" | "SEC" )`
}

// Frequency sets the TCK rate; without a value it restores the default.
type Frequency struct {
	Hz *float64 `"FREQUENCY" ( @Number "HZ" )? Semicolon`
}

// TRST drives the optional test reset line.
type TRST struct {
	Mode string `"TRST" @Ident Semicolon`
}
