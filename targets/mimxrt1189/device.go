//go:build tinygo && mimxrt1189

package main

import (
	"runtime/volatile"
	"unsafe"
)

// Peripherals
var (
	S3MU = (*S3MU_Type)(unsafe.Pointer(MU_RT_S3MUA_BASE))

	// LPUART1 carries the host link (MCU-Link VCOM on the EVK)
	LPUART1 = (*LPUART_Type)(unsafe.Pointer(LPUART1_BASE))

	// LPUART2 is the optional debug console
	LPUART2 = (*LPUART_Type)(unsafe.Pointer(LPUART2_BASE))
)

// Non-secure aliases as seen from the CM33
const (
	MU_RT_S3MUA_BASE uintptr = 0x47520000

	LPUART1_BASE uintptr = 0x44380000
	LPUART2_BASE uintptr = 0x44390000
)

// S3MU_Type is the application side of the messaging unit shared with the enclave
type S3MU_Type struct {
	_   [0x124]byte
	TSR volatile.Register32 // 0x124: bit i set when TR[i] is free
	_   [4]byte
	RSR volatile.Register32 // 0x12C: bit i set when RR[i] holds data
	_   [0x200 - 0x130]byte
	TR  [8]volatile.Register32 // 0x200
	_   [0x280 - 0x220]byte
	RR  [4]volatile.Register32 // 0x280
}

type LPUART_Type struct {
	VERID  volatile.Register32
	PARAM  volatile.Register32
	GLOBAL volatile.Register32
	PINCFG volatile.Register32
	BAUD   volatile.Register32
	STAT   volatile.Register32
	CTRL   volatile.Register32
	DATA   volatile.Register32
}

const (
	LPUART_BAUD_SBR_Msk = 0x1FFF
	LPUART_BAUD_OSR_Pos = 24
	LPUART_BAUD_OSR_Msk = 0x1F << LPUART_BAUD_OSR_Pos

	LPUART_STAT_RDRF = 1 << 21
	LPUART_STAT_TDRE = 1 << 23
	LPUART_STAT_OR   = 1 << 19

	LPUART_CTRL_RE = 1 << 18
	LPUART_CTRL_TE = 1 << 19
)
