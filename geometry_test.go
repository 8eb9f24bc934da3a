package sdspi

import (
	"reflect"
	"testing"
)

func Test_computeGeometry(t *testing.T) {
	type args struct {
		totalSectors uint32
	}
	tests := []struct {
		name string
		args args
		want Geometry
	}{
		{
			name: "small card takes the first table entry",
			args: args{totalSectors: 2048},
			want: Geometry{Cylinders: 8, Heads: 4, SectorsPerTrack: 63},
		},
		{
			name: "64 MiB card",
			args: args{totalSectors: 131072},
			want: Geometry{Cylinders: 520, Heads: 4, SectorsPerTrack: 63},
		},
		{
			name: "small tier upper bound needs the second sectors per track entry",
			args: args{totalSectors: 1 << 20},
			want: Geometry{Cylinders: 917, Heads: 9, SectorsPerTrack: 127},
		},
		{
			name: "one sector above the tier bound relaxes the cylinder limit",
			args: args{totalSectors: 1<<20 + 1},
			want: Geometry{Cylinders: 4161, Heads: 4, SectorsPerTrack: 63},
		},
		{
			name: "2 GiB card",
			args: args{totalSectors: 4194304},
			want: Geometry{Cylinders: 16644, Heads: 4, SectorsPerTrack: 63},
		},
		{
			name: "card too large for the table clamps to the maximum",
			args: args{totalSectors: 0xFFFFFFFF},
			want: Geometry{Cylinders: 65535, Heads: 16, SectorsPerTrack: 255},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeGeometry(tt.args.totalSectors); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("computeGeometry() = %v, want %v", got, tt.want)
			}
			// The result may not depend on anything but the input.
			if again := computeGeometry(tt.args.totalSectors); !reflect.DeepEqual(again, tt.want) {
				t.Errorf("computeGeometry() second call = %v, want %v", again, tt.want)
			}
		})
	}
}

func Test_computeGeometry_acceptanceRule(t *testing.T) {
	// Sweep a range of capacities and check the structural guarantees that
	// hold for every input.
	for totalSectors := uint32(1); totalSectors < 1<<28; totalSectors = totalSectors*3 + 7 {
		got := computeGeometry(totalSectors)

		if got.Heads < 4 || got.Heads > 16 {
			t.Errorf("computeGeometry(%d).Heads = %d, want 4..16", totalSectors, got.Heads)
		}
		switch got.SectorsPerTrack {
		case 63, 127, 255:
		default:
			t.Errorf("computeGeometry(%d).SectorsPerTrack = %d, want one of 63, 127, 255", totalSectors, got.SectorsPerTrack)
		}

		cylinders := totalSectors / (uint32(got.Heads) * uint32(got.SectorsPerTrack))
		if cylinders <= 65535 && uint32(got.Cylinders) != cylinders {
			t.Errorf("computeGeometry(%d).Cylinders = %d, want %d", totalSectors, got.Cylinders, cylinders)
		}
		if totalSectors <= 1<<20 && got.Cylinders > 1023 {
			t.Errorf("computeGeometry(%d).Cylinders = %d, want <= 1023 for small cards", totalSectors, got.Cylinders)
		}
	}
}

func Test_blockShift(t *testing.T) {
	tests := []struct {
		name      string
		blockSize uint32
		want      uint
	}{
		{name: "one byte", blockSize: 1, want: 0},
		{name: "standard sector", blockSize: 512, want: 9},
		{name: "large sector", blockSize: 1024, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := blockShift(tt.blockSize); got != tt.want {
				t.Errorf("blockShift() = %v, want %v", got, tt.want)
			}
		})
	}
}
