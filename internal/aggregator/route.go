package aggregator

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Swap venue variants of the route payload.
const (
	SwapSaber uint8 = iota
	SwapRaydium
	SwapOrca
	SwapWhirlpool
)

// RoutePlanStep is one hop of a route.
type RoutePlanStep struct {
	Swap        uint8
	WhirlpoolAB bool // only meaningful when Swap == SwapWhirlpool
	Percent     uint8
	InputIndex  uint8
	OutputIndex uint8
}

// RouteArgs is the argument block of the aggregator's route instruction.
type RouteArgs struct {
	RoutePlan       []RoutePlanStep
	InAmount        uint64
	QuotedOutAmount uint64
	SlippageBps     uint16
	PlatformFeeBps  uint8
}

var routeDiscriminator = instructionDiscriminator("route")

func instructionDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// EncodeRoute serializes a route instruction payload the way the aggregator
// expects it: 8-byte discriminator followed by borsh-encoded arguments.
func EncodeRoute(args RouteArgs) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(routeDiscriminator[:])

	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint32(uint32(len(args.RoutePlan)), bin.LE); err != nil {
		return nil, err
	}
	for _, step := range args.RoutePlan {
		if err := enc.WriteByte(step.Swap); err != nil {
			return nil, err
		}
		if step.Swap == SwapWhirlpool {
			if err := enc.WriteBool(step.WhirlpoolAB); err != nil {
				return nil, err
			}
		}
		if err := enc.WriteByte(step.Percent); err != nil {
			return nil, err
		}
		if err := enc.WriteByte(step.InputIndex); err != nil {
			return nil, err
		}
		if err := enc.WriteByte(step.OutputIndex); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteUint64(args.InAmount, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(args.QuotedOutAmount, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(args.SlippageBps, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteByte(args.PlatformFeeBps); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRoute parses a route instruction payload.
func DecodeRoute(data []byte) (RouteArgs, error) {
	if len(data) < len(routeDiscriminator) || !bytes.Equal(data[:8], routeDiscriminator[:]) {
		return RouteArgs{}, fmt.Errorf("aggregator: route discriminator mismatch")
	}

	dec := bin.NewBorshDecoder(data[8:])
	var args RouteArgs

	steps, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return RouteArgs{}, fmt.Errorf("read route plan length: %w", err)
	}
	args.RoutePlan = make([]RoutePlanStep, 0, steps)
	for i := uint32(0); i < steps; i++ {
		var step RoutePlanStep
		if step.Swap, err = dec.ReadByte(); err != nil {
			return RouteArgs{}, fmt.Errorf("read route step %d venue: %w", i, err)
		}
		if step.Swap > SwapWhirlpool {
			return RouteArgs{}, fmt.Errorf("aggregator: unknown venue variant %d", step.Swap)
		}
		if step.Swap == SwapWhirlpool {
			if step.WhirlpoolAB, err = dec.ReadBool(); err != nil {
				return RouteArgs{}, fmt.Errorf("read route step %d direction: %w", i, err)
			}
		}
		if step.Percent, err = dec.ReadByte(); err != nil {
			return RouteArgs{}, fmt.Errorf("read route step %d percent: %w", i, err)
		}
		if step.InputIndex, err = dec.ReadByte(); err != nil {
			return RouteArgs{}, fmt.Errorf("read route step %d input index: %w", i, err)
		}
		if step.OutputIndex, err = dec.ReadByte(); err != nil {
			return RouteArgs{}, fmt.Errorf("read route step %d output index: %w", i, err)
		}
		args.RoutePlan = append(args.RoutePlan, step)
	}

	if args.InAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return RouteArgs{}, fmt.Errorf("read in amount: %w", err)
	}
	if args.QuotedOutAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return RouteArgs{}, fmt.Errorf("read quoted out amount: %w", err)
	}
	if args.SlippageBps, err = dec.ReadUint16(bin.LE); err != nil {
		return RouteArgs{}, fmt.Errorf("read slippage bps: %w", err)
	}
	if args.PlatformFeeBps, err = dec.ReadByte(); err != nil {
		return RouteArgs{}, fmt.Errorf("read platform fee bps: %w", err)
	}
	return args, nil
}
