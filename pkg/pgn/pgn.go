// Package pgn holds the CAN identifier / Parameter Group Number catalog
// from spec.md §6. Every constant is stored the way the catalog stores
// it: low byte 0xFE, a wildcard placeholder substituted by ident.Build at
// transmit time.
package pgn

// Info group.
const (
	ModuleInfoReq   uint32 = 0x000FE
	ModuleInfoAns   uint32 = 0x001FE
	ModuleInfoEx    uint32 = 0x008FE
	ModuleInfoBoot  uint32 = 0x002FE
	PinInfo         uint32 = 0x010FE
)

// UIO group.
const (
	OpModeReq        uint32 = 0x121FE
	OpModeAns        uint32 = 0x120FE
	VoltageOutReq    uint32 = 0x116FE
	VoltageOutAns    uint32 = 0x117FE
	VoltageOutInAns  uint32 = 0x114FE
	CurLoopOutReq    uint32 = 0x126FE
	CurLoopOutAns    uint32 = 0x127FE
	CurLoopOutInAns  uint32 = 0x128FE
	PwmOutReq        uint32 = 0x112FE
	PwmOutAns        uint32 = 0x113FE
	PwmOutInAns      uint32 = 0x122FE
	SwitchOutputReq  uint32 = 0x123FE
	SwitchOutputAns  uint32 = 0x124FE
)

// ELoad group. VoltageElmOutReq/Ans intentionally share the wire PGN with
// VoltageOutReq/Ans (spec.md §9 Open Questions); disambiguation between
// a UIO and an ELoad voltage-out message happens by signal set, not PGN,
// see pkg/dbc.
const (
	VoltageElmOutReq uint32 = 0x116FE
	VoltageElmOutAns uint32 = 0x117FE
	CurElmOutReq     uint32 = 0x129FE
	CurElmOutAns     uint32 = 0x12BFE
	CurElmOutInAns   uint32 = 0x12AFE
	TempElmInAns     uint32 = 0x12EFE
	SwitchElmDoutReq uint32 = 0x12CFE
	SwitchElmDoutAns uint32 = 0x12DFE
)

// CAN group (IfMux).
const (
	CanInfoReq  uint32 = 0x021FE
	CanInfoAns  uint32 = 0x020FE
	CanStateAns uint32 = 0x022FE
	CanMuxReq   uint32 = 0x028FE
	CanMuxAns   uint32 = 0x029FE
)

// LIN group (IfMux).
const (
	LinCfgReq       uint32 = 0x040FE
	LinFrameSetReq  uint32 = 0x042FE
	LinFrameRcvdAns uint32 = 0x043FE
)

// Name maps a catalog PGN to the DBC message name convention
// spec.md §6 specifies the signal naming for, for logging.
var Name = map[uint32]string{
	ModuleInfoReq:    "MODULE_INFO_REQ",
	ModuleInfoAns:    "MODULE_INFO_ANS",
	ModuleInfoEx:     "MODULE_INFO_EX",
	ModuleInfoBoot:   "MODULE_INFO_BOOT",
	PinInfo:          "PIN_INFO",
	OpModeReq:        "OP_MODE_REQ",
	OpModeAns:        "OP_MODE_ANS",
	VoltageOutReq:    "VOLTAGE_OUT_REQ",
	VoltageOutAns:    "VOLTAGE_OUT_ANS",
	VoltageOutInAns:  "VOLTAGE_OUT_IN_ANS",
	CurLoopOutReq:    "CUR_LOOP_OUT_REQ",
	CurLoopOutAns:    "CUR_LOOP_OUT_ANS",
	CurLoopOutInAns:  "CUR_LOOP_OUT_IN_ANS",
	PwmOutReq:        "PWM_OUT_REQ",
	PwmOutAns:        "PWM_OUT_ANS",
	PwmOutInAns:      "PWM_OUT_IN_ANS",
	SwitchOutputReq:  "SWITCH_OUTPUT_REQ",
	SwitchOutputAns:  "SWITCH_OUTPUT_ANS",
	CurElmOutReq:     "CUR_ELM_OUT_REQ",
	CurElmOutAns:     "CUR_ELM_OUT_ANS",
	CurElmOutInAns:   "CUR_ELM_OUT_IN_ANS",
	TempElmInAns:     "TEMP_ELM_IN_ANS",
	SwitchElmDoutReq: "SWITCH_ELM_DOUT_REQ",
	SwitchElmDoutAns: "SWITCH_ELM_DOUT_ANS",
	CanInfoReq:       "CAN_INFO_REQ",
	CanInfoAns:       "CAN_INFO_ANS",
	CanStateAns:      "CAN_STATE_ANS",
	CanMuxReq:        "CAN_MUX_REQ",
	CanMuxAns:        "CAN_MUX_ANS",
	LinCfgReq:        "LIN_CFG_REQ",
	LinFrameSetReq:   "LIN_FRAME_SET_REQ",
	LinFrameRcvdAns:  "LIN_FRAME_RCVD_ANS",
}
