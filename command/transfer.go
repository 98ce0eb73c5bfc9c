package command

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"pkt.systems/x3270script/schema"
)

// Direction is the file transfer direction, seen from the workstation.
type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

// TransferMode selects text or binary transfer.
type TransferMode string

const (
	TransferASCII  TransferMode = "ascii"
	TransferBinary TransferMode = "binary"
)

// HostType names the IND$FILE host environment.
type HostType string

const (
	HostTSO  HostType = "tso"
	HostVM   HostType = "vm"
	HostCICS HostType = "cics"
)

// CRAction controls carriage-return handling in ASCII transfers.
type CRAction string

const (
	CRAdd    CRAction = "add"
	CRRemove CRAction = "remove"
	CRKeep   CRAction = "keep"
)

// ExistAction controls what happens when the destination file exists.
type ExistAction string

const (
	ExistKeep    ExistAction = "keep"
	ExistReplace ExistAction = "replace"
	ExistAppend  ExistAction = "append"
)

// RecordFormat is the host record format for sent files.
type RecordFormat string

const (
	RecordFixed     RecordFormat = "fixed"
	RecordVariable  RecordFormat = "variable"
	RecordUndefined RecordFormat = "undefined"
)

// AllocationUnit is the TSO space allocation unit.
type AllocationUnit string

const (
	AllocTracks    AllocationUnit = "tracks"
	AllocCylinders AllocationUnit = "cylinders"
	AllocAvblock   AllocationUnit = "avblock"
)

// TransferParam is one optional Transfer keyword. Values are validated
// when the parameter is constructed; cross-parameter rules are checked by
// Transfer.
type TransferParam struct {
	name  string
	value string
}

// Name returns the keyword.
func (p TransferParam) Name() string { return p.name }

// Value returns the rendered value.
func (p TransferParam) Value() string { return p.value }

type paramRule struct {
	direction Direction
	mode      TransferMode
	hosts     []HostType
	noAppend  bool
}

var paramRules = map[string]paramRule{
	"cr":              {mode: TransferASCII},
	"remap":           {mode: TransferASCII},
	"windowscodepage": {mode: TransferASCII},
	"exist":           {},
	"buffersize":      {},
	"recfm":           {direction: DirectionSend, hosts: []HostType{HostTSO, HostVM}, noAppend: true},
	"lrecl":           {direction: DirectionSend, hosts: []HostType{HostTSO, HostVM}, noAppend: true},
	"blksize":         {direction: DirectionSend, hosts: []HostType{HostTSO}, noAppend: true},
	"allocation":      {direction: DirectionSend, hosts: []HostType{HostTSO}, noAppend: true},
	"primaryspace":    {direction: DirectionSend, hosts: []HostType{HostTSO}, noAppend: true},
	"secondaryspace":  {direction: DirectionSend, hosts: []HostType{HostTSO}, noAppend: true},
	"avblock":         {direction: DirectionSend, hosts: []HostType{HostTSO}, noAppend: true},
}

// CR sets carriage-return handling.
func CR(action CRAction) (TransferParam, error) {
	switch action {
	case CRAdd, CRRemove, CRKeep:
		return TransferParam{name: "cr", value: string(action)}, nil
	}
	return TransferParam{}, invalidParam("cr", string(action))
}

// Remap enables or disables ASCII/EBCDIC character remapping.
func Remap(enabled bool) (TransferParam, error) {
	value := "no"
	if enabled {
		value = "yes"
	}
	return TransferParam{name: "remap", value: value}, nil
}

// Exist sets the action for an existing destination file.
func Exist(action ExistAction) (TransferParam, error) {
	switch action {
	case ExistKeep, ExistReplace, ExistAppend:
		return TransferParam{name: "exist", value: string(action)}, nil
	}
	return TransferParam{}, invalidParam("exist", string(action))
}

// Recfm sets the host record format.
func Recfm(format RecordFormat) (TransferParam, error) {
	switch format {
	case RecordFixed, RecordVariable, RecordUndefined:
		return TransferParam{name: "recfm", value: string(format)}, nil
	}
	return TransferParam{}, invalidParam("recfm", string(format))
}

// Lrecl sets the logical record length.
func Lrecl(n int) (TransferParam, error) {
	return intParam("lrecl", n, 1, 32767)
}

// Blksize sets the TSO block size.
func Blksize(n int) (TransferParam, error) {
	return intParam("blksize", n, 1, 32760)
}

// Allocation sets the TSO allocation unit.
func Allocation(unit AllocationUnit) (TransferParam, error) {
	switch unit {
	case AllocTracks, AllocCylinders, AllocAvblock:
		return TransferParam{name: "allocation", value: string(unit)}, nil
	}
	return TransferParam{}, invalidParam("allocation", string(unit))
}

// PrimarySpace sets the TSO primary allocation quantity.
func PrimarySpace(n int) (TransferParam, error) {
	return intParam("primaryspace", n, 1, 1<<24)
}

// SecondarySpace sets the TSO secondary allocation quantity.
func SecondarySpace(n int) (TransferParam, error) {
	return intParam("secondaryspace", n, 1, 1<<24)
}

// Avblock sets the TSO average block size for avblock allocation.
func Avblock(n int) (TransferParam, error) {
	return intParam("avblock", n, 1, 1<<24)
}

// BufferSize sets the transfer buffer size.
func BufferSize(n int) (TransferParam, error) {
	return intParam("buffersize", n, 256, 32768)
}

// WindowsCodePage sets the workstation code page for ASCII transfers.
func WindowsCodePage(n int) (TransferParam, error) {
	return intParam("windowscodepage", n, 1, 65535)
}

func intParam(name string, n, lo, hi int) (TransferParam, error) {
	if n < lo || n > hi {
		return TransferParam{}, fmt.Errorf("%w: %s=%d not in [%d,%d]", schema.ErrOutOfRange, name, n, lo, hi)
	}
	return TransferParam{name: name, value: strconv.Itoa(n)}, nil
}

func invalidParam(name, value string) error {
	return fmt.Errorf("%w: %s=%q", schema.ErrInvalidArgument, name, value)
}

// TransferRequest describes one IND$FILE transfer.
type TransferRequest struct {
	Direction Direction
	Mode      TransferMode
	Host      HostType
	LocalFile string
	HostFile  string
	Params    []TransferParam
}

// Transfer validates req and renders the Transfer action. Keywords are
// emitted sorted by name.
func Transfer(req TransferRequest) (string, error) {
	switch req.Direction {
	case DirectionSend, DirectionReceive:
	default:
		return "", invalidParam("direction", string(req.Direction))
	}
	switch req.Mode {
	case TransferASCII, TransferBinary:
	default:
		return "", invalidParam("mode", string(req.Mode))
	}
	switch req.Host {
	case HostTSO, HostVM, HostCICS:
	default:
		return "", invalidParam("host", string(req.Host))
	}
	if req.LocalFile == "" {
		return "", fmt.Errorf("%w: empty local file", schema.ErrInvalidArgument)
	}
	if req.HostFile == "" {
		return "", fmt.Errorf("%w: empty host file", schema.ErrInvalidArgument)
	}

	values := map[string]string{
		"direction": string(req.Direction),
		"mode":      string(req.Mode),
		"host":      string(req.Host),
		"localfile": req.LocalFile,
		"hostfile":  req.HostFile,
	}
	for _, p := range req.Params {
		if p.name == "" {
			return "", fmt.Errorf("%w: zero transfer parameter", schema.ErrInvalidArgument)
		}
		if _, dup := values[p.name]; dup {
			return "", fmt.Errorf("%w: duplicate transfer parameter %q", schema.ErrInvalidArgument, p.name)
		}
		values[p.name] = p.value
	}
	if err := checkTransferRules(req, values); err != nil {
		return "", err
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	tokens := make([]string, 0, len(names))
	for _, name := range names {
		tok, err := QuoteString(name + "=" + values[name])
		if err != nil {
			return "", err
		}
		tokens = append(tokens, tok)
	}
	return ActionRaw("Transfer", tokens...)
}

func checkTransferRules(req TransferRequest, values map[string]string) error {
	appending := values["exist"] == string(ExistAppend)
	for name := range values {
		rule, ok := paramRules[name]
		if !ok {
			continue
		}
		if rule.direction != "" && rule.direction != req.Direction {
			return fmt.Errorf("%w: %s is only valid when direction=%s", schema.ErrInvalidArgument, name, rule.direction)
		}
		if rule.mode != "" && rule.mode != req.Mode {
			return fmt.Errorf("%w: %s is only valid when mode=%s", schema.ErrInvalidArgument, name, rule.mode)
		}
		if len(rule.hosts) > 0 && !slices.Contains(rule.hosts, req.Host) {
			return fmt.Errorf("%w: %s is not valid for host=%s", schema.ErrInvalidArgument, name, req.Host)
		}
		if rule.noAppend && appending {
			return fmt.Errorf("%w: %s conflicts with exist=append", schema.ErrInvalidArgument, name)
		}
	}
	alloc, hasAlloc := values["allocation"]
	if _, ok := values["avblock"]; ok && alloc != string(AllocAvblock) {
		return fmt.Errorf("%w: avblock requires allocation=avblock", schema.ErrInvalidArgument)
	}
	if hasAlloc {
		if _, ok := values["primaryspace"]; !ok {
			return fmt.Errorf("%w: allocation requires primaryspace", schema.ErrInvalidArgument)
		}
		if _, ok := values["avblock"]; alloc == string(AllocAvblock) && !ok {
			return fmt.Errorf("%w: allocation=avblock requires avblock", schema.ErrInvalidArgument)
		}
	}
	if _, ok := values["secondaryspace"]; ok {
		if _, ok := values["primaryspace"]; !ok {
			return fmt.Errorf("%w: secondaryspace requires primaryspace", schema.ErrInvalidArgument)
		}
	}
	return nil
}
