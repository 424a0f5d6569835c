package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dragazo/NetsBlox-vm/bytecode"
)

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	require.Equal(t, "ADD", bytecode.OpAdd.String())
	require.Equal(t, "CALL", bytecode.OpCall.String())
	require.Equal(t, "UNKNOWN", bytecode.OpCode(255).String())
}

func TestHasOperandMatchesEncodingWidth(t *testing.T) {
	require.False(t, bytecode.HasOperand(bytecode.OpAdd))
	require.False(t, bytecode.HasOperand(bytecode.OpWait))
	require.True(t, bytecode.HasOperand(bytecode.OpPushConst))
	require.True(t, bytecode.HasOperand(bytecode.OpJump))
	require.True(t, bytecode.HasOperand(bytecode.OpCall))
}

func TestHasSecondOperandOnlyOnCalls(t *testing.T) {
	require.True(t, bytecode.HasSecondOperand(bytecode.OpCall))
	require.True(t, bytecode.HasSecondOperand(bytecode.OpTailCall))
	require.True(t, bytecode.HasSecondOperand(bytecode.OpCallClosure))
	require.False(t, bytecode.HasSecondOperand(bytecode.OpMakeClosure))
	require.False(t, bytecode.HasSecondOperand(bytecode.OpJump))
}
