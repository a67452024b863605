package main

import "testing"

func TestValidateFrameSizeAligned(t *testing.T) {
	if err := ValidateFrameSize(0x1000); err != nil {
		t.Errorf("unexpected error for a 16-aligned frame size: %v", err)
	}
}

func TestValidateFrameSizeMisaligned(t *testing.T) {
	if err := ValidateFrameSize(0x1001); err == nil {
		t.Errorf("expected an error for a frame size that is not 16-byte aligned")
	}
}

func TestValidateCallAlignmentMixedSizes(t *testing.T) {
	if err := ValidateCallAlignment([]int32{0x10, 0x1000, 0x30}); err != nil {
		t.Errorf("unexpected error for all-aligned frame sizes: %v", err)
	}
	if err := ValidateCallAlignment([]int32{0x10, 0x1001}); err == nil {
		t.Errorf("expected an error when one frame size in the slice is misaligned")
	}
}

func TestValidateCallAlignmentEmpty(t *testing.T) {
	if err := ValidateCallAlignment(nil); err != nil {
		t.Errorf("unexpected error validating an empty slice: %v", err)
	}
}

func TestDefaultFrameSizeIsAligned(t *testing.T) {
	if defaultFrameSize%16 != 0 {
		t.Errorf("defaultFrameSize 0x%X is not 16-byte aligned", defaultFrameSize)
	}
}
