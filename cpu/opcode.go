package cpu

// Opcode byte values. The low two bits select the column, bits 2..5 the
// row. Slots not listed here execute as no-ops charging fetch and decode
// only.
const (
	OpNOP  = byte(0x00)
	OpDUP  = byte(0x08)
	OpSWAP = byte(0x0C)
	OpADD  = byte(0x10)
	OpSUB  = byte(0x14)
	OpMUL  = byte(0x18)
	OpDIV  = byte(0x1C)
	OpAND  = byte(0x20)
	OpOR   = byte(0x24)
	OpXOR  = byte(0x28)
	OpREM  = byte(0x2C)
	OpSLL1 = byte(0x30) // SLL 2..4 at 0x34, 0x38, 0x3C
	OpINC  = byte(0x40)
	OpDEC  = byte(0x44)
	OpNEG  = byte(0x48)
	OpINV  = byte(0x4C)
	OpI2B  = byte(0x5C)
	OpSLT  = byte(0x60)
	OpSLTU = byte(0x64)
	OpPOP1 = byte(0x78)
	OpPOP2 = byte(0x7C)
	OpLD   = byte(0x88)
	OpPOP  = byte(0xB0)
	OpPUSH = byte(0xF0)
	OpST   = byte(0xF8)

	OpLB = byte(0x09)
	OpSB = byte(0x79)
	OpLU = byte(0x89)

	OpB    = byte(0x0A)
	OpSRL1 = byte(0x32) // SRL 2..4 at 0x36, 0x3A, 0x3E
	OpBEQ  = byte(0x42)
	OpBNE  = byte(0x46)
	OpBLT  = byte(0x52)
	OpBLTU = byte(0x56)
	OpBGE  = byte(0x5A)
	OpBGEU = byte(0x5E)
	OpJ    = byte(0x62)
	OpJAL  = byte(0x66)
	OpJR   = byte(0x6A)
	OpJALR = byte(0x6E)

	OpECALL  = byte(0x7A)
	OpU      = byte(0x8A)
	OpSRA1   = byte(0xB2) // SRA 2..4 at 0xB6, 0xBA, 0xBE
	OpEBREAK = byte(0xFA)

	OpLDL0 = byte(0x03) // LDL @k at 0x03 + 4k
	OpSTL0 = byte(0x43) // STL @k at 0x43 + 4k
	OpI0   = byte(0x83)
	OpI1   = byte(0x87)
	OpI    = byte(0x8B)
	OpAIIP = byte(0xCB)
	OpSETI = byte(0xE3)
	OpCLRI = byte(0xE7)
	OpEI   = byte(0xF3)
	OpDI   = byte(0xF7)
	OpIRET = byte(0xFB)
	OpHLT  = byte(0xFF)
)
