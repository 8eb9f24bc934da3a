package sdspi

import (
	"errors"
	"reflect"
	"testing"
)

func Test_decodeCSD(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		want    CSD
		wantErr error
	}{
		{
			name: "version 1 layout",
			raw: []byte{
				0x00, 0x26, 0x00, 0x32, 0x1F, 0x59,
				0x03, 0xAA, 0x00,
				0x02, 0xFF, 0x80,
				0x02, 0x40, 0x40, 0x00,
			},
			want: CSD{
				Structure:        0,
				TAAC:             0x26,
				NSAC:             0x00,
				TranSpeed:        0x32,
				CCC:              0x1F5,
				ReadBlockLen:     9,
				WriteBlockLen:    9,
				CSize:            3752,
				CSizeMult:        5,
				EraseBlockEnable: true,
				EraseSectorSize:  0x7F,
				WPGroupSize:      0x00,
				WPGroupEnable:    false,
				Copy:             true,
			},
		},
		{
			name: "version 2 layout",
			raw: []byte{
				0x40, 0x0E, 0x00, 0x32, 0x5B, 0x59,
				0x00, 0x00, 0x3B, 0x37,
				0x7F, 0x80,
				0x0A, 0x40, 0x00, 0x00,
			},
			want: CSD{
				Structure:        1,
				TAAC:             0x0E,
				NSAC:             0x00,
				TranSpeed:        0x32,
				CCC:              0x5B5,
				ReadBlockLen:     9,
				WriteBlockLen:    9,
				CSize:            0x3B37,
				EraseBlockEnable: true,
				EraseSectorSize:  0x7F,
				WPGroupSize:      0x00,
			},
		},
		{
			name: "mismatched block lengths are unsupported",
			raw: []byte{
				0x00, 0x26, 0x00, 0x32, 0x1F, 0x5A,
				0x03, 0xAA, 0x00,
				0x02, 0xFF, 0x80,
				0x02, 0x40, 0x40, 0x00,
			},
			wantErr: ErrUnsupportedCard,
		},
		{
			name: "unknown structure version is unsupported",
			raw: []byte{
				0x80, 0x26, 0x00, 0x32, 0x1F, 0x59,
				0x03, 0xAA, 0x00,
				0x02, 0xFF, 0x80,
				0x02, 0x40, 0x40, 0x00,
			},
			wantErr: ErrUnsupportedCard,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCSD(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("decodeCSD() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeCSD() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeCSD() = %+v, want %+v", got, tt.want)
			}

			// Decoding is a pure function of the register bytes.
			again, err := decodeCSD(tt.raw)
			if err != nil {
				t.Fatalf("decodeCSD() second call error = %v", err)
			}
			if !reflect.DeepEqual(again, got) {
				t.Errorf("decodeCSD() second call = %+v, want %+v", again, got)
			}
		})
	}
}

func TestCSD_sectorCount(t *testing.T) {
	tests := []struct {
		name     string
		csd      CSD
		cardType CardType
		want     uint32
		wantErr  error
	}{
		{
			name:     "standard capacity uses the size and multiplier pair",
			csd:      CSD{CSize: 3752, CSizeMult: 5, ReadBlockLen: 9},
			cardType: CardSD1,
			want:     (3752 + 1) << (5 + 2),
		},
		{
			name:     "MMC counts like standard capacity",
			csd:      CSD{CSize: 1023, CSizeMult: 7, ReadBlockLen: 9},
			cardType: CardMMC,
			want:     (1023 + 1) << (7 + 2),
		},
		{
			name:     "high capacity uses the version 2 size field",
			csd:      CSD{CSize: 0x3B37, ReadBlockLen: 9},
			cardType: CardSDHC,
			want:     (0x3B37 + 1) << 10,
		},
		{
			name:     "unknown card type is unsupported",
			csd:      CSD{CSize: 1, ReadBlockLen: 9},
			cardType: CardNone,
			wantErr:  ErrUnsupportedCard,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.csd.sectorCount(tt.cardType)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("CSD.sectorCount() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CSD.sectorCount() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CSD.sectorCount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_decodeCID(t *testing.T) {
	raw := []byte{
		0x1B,
		'S', 'M',
		'E', 'M', 'U', 'S', 'D',
		0x10,
		0x5D, 0x15, 0x00, 0x01,
		0x01, 0x86,
		0x00,
	}

	want := CID{
		ManufacturerID:     0x1B,
		OEMID:              "SM",
		ProductName:        "EMUSD",
		ProductRevision:    0x10,
		SerialNumber:       0x5D150001,
		ManufacturingYear:  2024,
		ManufacturingMonth: 6,
	}

	if got := decodeCID(raw); !reflect.DeepEqual(got, want) {
		t.Errorf("decodeCID() = %+v, want %+v", got, want)
	}
}

func Test_crc7(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "GO_IDLE_STATE frame",
			data: []byte{0x40, 0x00, 0x00, 0x00, 0x00},
			want: 0x4A, // 0x95 on the wire
		},
		{
			name: "SEND_IF_COND frame",
			data: []byte{0x48, 0x00, 0x00, 0x01, 0xAA},
			want: 0x43, // 0x87 on the wire
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crc7(tt.data); got != tt.want {
				t.Errorf("crc7() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func Test_crc16(t *testing.T) {
	allOnes := make([]byte, 512)
	for i := range allOnes {
		allOnes[i] = 0xFF
	}

	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "check value",
			data: []byte("123456789"),
			want: 0x31C3,
		},
		{
			name: "all ones sector",
			data: allOnes,
			want: 0x7FA1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crc16(tt.data); got != tt.want {
				t.Errorf("crc16() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}
