// sdisk inspects and edits SD card images by running them through the full
// SPI driver stack: the image is mounted behind an emulated card and all
// access goes through the block device contract of the driver.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/aligator/sdspi"
	"github.com/aligator/sdspi/emu"
)

var cardTypes = map[string]sdspi.CardType{
	"sd1":  sdspi.CardSD1,
	"sd2":  sdspi.CardSD2,
	"sdhc": sdspi.CardSDHC,
	"mmc":  sdspi.CardMMC,
}

func main() {
	var (
		cardKind  string
		strictCRC bool
	)

	openUnit := func(path string) (*sdspi.Unit, *emu.Card, error) {
		kind, ok := cardTypes[cardKind]
		if !ok {
			return nil, nil, fmt.Errorf("unknown card type %q", cardKind)
		}

		card, err := emu.Open(afero.NewOsFs(), path, emu.Profile{
			Type:            kind,
			ManufacturerID:  0x1B,
			ProductRevision: 0x10,
			SerialNumber:    0x5D150001,
		})
		if err != nil {
			return nil, nil, err
		}

		unit := sdspi.NewUnit(card, sdspi.WallClock{}, 0)
		unit.Card().StrictCRC = strictCRC
		if err := unit.Init(); err != nil {
			card.Close()
			return nil, nil, err
		}
		return unit, card, nil
	}

	root := &cobra.Command{
		Use:   "sdisk",
		Short: "Inspect and edit SD card images through the SPI driver",
	}
	root.PersistentFlags().StringVar(&cardKind, "card", "sdhc", "card personality: sd1|sd2|sdhc|mmc")
	root.PersistentFlags().BoolVar(&strictCRC, "strict-crc", false, "verify register and data block checksums")

	infoCmd := &cobra.Command{
		Use:   "info <image>",
		Short: "Bring up the card and show its identity and geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			unit, card, err := openUnit(args[0])
			if err != nil {
				return err
			}
			defer card.Close()

			c := unit.Card()
			fmt.Printf("card type:      %v\n", c.Type)
			fmt.Printf("sectors:        %d (%d MiB)\n", c.TotalSectors, uint64(c.TotalSectors)*uint64(c.BlockSize)>>20)
			fmt.Printf("block size:     %d\n", c.BlockSize)

			cylinders, heads, spt, _ := unit.Geometry()
			fmt.Printf("geometry:       %d/%d/%d\n", cylinders, heads, spt)

			fmt.Printf("manufacturer:   0x%02X %q\n", c.CID.ManufacturerID, c.CID.OEMID)
			fmt.Printf("product:        %q rev 0x%02X\n", c.CID.ProductName, c.CID.ProductRevision)
			fmt.Printf("serial:         0x%08X\n", c.CID.SerialNumber)
			fmt.Printf("manufactured:   %d-%02d\n", c.CID.ManufacturingYear, c.CID.ManufacturingMonth)

			identify := make([]byte, sdspi.IdentifySize)
			if err := unit.Identify(identify); err != nil {
				return err
			}
			fmt.Printf("identify model: %q\n", identify[27*2:27*2+40])
			return nil
		},
	}

	readCmd := &cobra.Command{
		Use:   "read <image> <lba> [count]",
		Short: "Hex dump sectors",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(_ *cobra.Command, args []string) error {
			lba, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return err
			}
			count := uint64(1)
			if len(args) == 3 {
				if count, err = strconv.ParseUint(args[2], 0, 32); err != nil {
					return err
				}
			}

			unit, card, err := openUnit(args[0])
			if err != nil {
				return err
			}
			defer card.Close()

			buf := make([]byte, count*sdspi.SectorSize)
			if err := unit.Read(buf, uint32(lba), uint32(count)); err != nil {
				return err
			}
			fmt.Print(hex.Dump(buf))
			return nil
		},
	}

	writeCmd := &cobra.Command{
		Use:   "write <image> <lba> <file>",
		Short: "Write the content of a file at the given sector",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			lba, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return err
			}
			data, err := afero.ReadFile(afero.NewOsFs(), args[2])
			if err != nil {
				return err
			}

			unit, card, err := openUnit(args[0])
			if err != nil {
				return err
			}
			defer card.Close()

			// Pad to whole sectors.
			count := (uint32(len(data)) + sdspi.SectorSize - 1) / sdspi.SectorSize
			buf := make([]byte, count*sdspi.SectorSize)
			copy(buf, data)

			if err := unit.Write(buf, uint32(lba), count); err != nil {
				return err
			}
			fmt.Printf("wrote %d sectors at LBA %d\n", count, lba)
			return nil
		},
	}

	root.AddCommand(infoCmd, readCmd, writeCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
