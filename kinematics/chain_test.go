package kinematics

import (
	"math"
	"os"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/referenceframe"
)

func loadTestChain(t *testing.T) *Chain {
	t.Helper()
	data, err := os.ReadFile("testdata/sixaxis.urdf")
	require.NoError(t, err)
	chain, err := ParseURDF(data, nil, WithFlipJoints([]int{0, 2, 4}))
	require.NoError(t, err)
	return chain
}

func TestExpandCompress(t *testing.T) {
	limit := referenceframe.Limit{Min: -math.Pi, Max: math.Pi}
	links := []Link{
		{Name: "base", Type: Fixed, Origin: IdentityPose()},
		{Name: "a", Type: Revolute, Origin: IdentityPose(), Axis: r3.Vector{Z: 1}, Limit: limit},
		{Name: "held", Type: Revolute, Origin: IdentityPose(), Axis: r3.Vector{Z: 1}, Limit: limit},
		{Name: "b", Type: Revolute, Origin: IdentityPose(), Axis: r3.Vector{Z: 1}, Limit: limit},
		{Name: "tip", Type: Fixed, Origin: IdentityPose()},
	}
	chain, err := NewChain("masked", links, []bool{false, true, false, true, false})
	require.NoError(t, err)
	require.Equal(t, 2, chain.NumActive())

	full, err := chain.Expand(JointVector{0.3, -0.7})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.3, 0, -0.7, 0}, full)

	active, err := chain.Compress([]float64{9, 0.3, 8, -0.7, 7})
	require.NoError(t, err)
	assert.Equal(t, JointVector{0.3, -0.7}, active)

	_, err = chain.Expand(JointVector{1, 2, 3})
	assert.True(t, errors.Is(err, ErrJointCount))
	_, err = chain.Compress([]float64{1})
	assert.True(t, errors.Is(err, ErrJointCount))
}

func TestNewChainRejectsBadMasks(t *testing.T) {
	links := []Link{
		{Name: "base", Type: Fixed},
		{Name: "a", Type: Revolute, Axis: r3.Vector{Z: 1}},
	}
	_, err := NewChain("short", links, []bool{true})
	assert.True(t, errors.Is(err, ErrJointCount))

	_, err = NewChain("fixed-active", links, []bool{true, true})
	assert.ErrorContains(t, err, "fixed but marked active")

	_, err = NewChain("bad-flip", links, nil, WithFlipJoints([]int{3}))
	assert.ErrorContains(t, err, "out of range")
}

func TestParseURDF(t *testing.T) {
	chain := loadTestChain(t)

	assert.Equal(t, "sixaxis", chain.Name())
	assert.Equal(t, 8, chain.NumLinks())
	assert.Equal(t, 6, chain.NumActive())
	assert.Equal(t, []bool{false, true, true, true, true, true, true, false}, chain.Mask())
	assert.Equal(t, []int{0, 2, 4}, chain.FlipJoints())
	assert.Equal(t, referenceframe.Limit{Min: -2.0, Max: 2.0}, chain.Limits()[4])

	zero, err := chain.Expand(make(JointVector, 6))
	require.NoError(t, err)
	pose, err := chain.Forward(zero)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, pose.Position.X, 1e-12)
	assert.InDelta(t, 0.0, pose.Position.Y, 1e-12)
	assert.InDelta(t, 0.3, pose.Position.Z, 1e-12)
	assert.Equal(t, Identity(), pose.Rotation)

	turned, err := chain.Expand(JointVector{math.Pi / 2, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	pose, err = chain.Forward(turned)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, pose.Position.X, 1e-12)
	assert.InDelta(t, 0.25, pose.Position.Y, 1e-12)
	assert.InDelta(t, 0.3, pose.Position.Z, 1e-12)
}

func TestParseURDFErrors(t *testing.T) {
	tests := []struct {
		name string
		urdf string
		msg  string
	}{
		{"not xml", "robot", "failed to parse URDF"},
		{"no joints", `<robot name="empty"><link name="a"/></robot>`, "declares no joints"},
		{
			"branching",
			`<robot name="tree">
				<joint name="a" type="fixed"><parent link="root"/><child link="x"/></joint>
				<joint name="b" type="fixed"><parent link="root"/><child link="y"/></joint>
			</robot>`,
			"more than one child joint",
		},
		{
			"unsupported type",
			`<robot name="float"><joint name="a" type="floating"><parent link="root"/><child link="x"/></joint></robot>`,
			"unsupported type",
		},
		{
			"missing limit",
			`<robot name="nolimit"><joint name="a" type="revolute"><parent link="root"/><child link="x"/><axis xyz="0 0 1"/></joint></robot>`,
			"has no limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURDF([]byte(tt.urdf), nil)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestMockChain(t *testing.T) {
	chain := MockChain()
	assert.True(t, chain.IsMock())
	assert.Equal(t, 0, chain.NumActive())

	pose, err := chain.Forward(nil)
	require.NoError(t, err)
	assert.Equal(t, IdentityPose(), pose)
}

func TestChainString(t *testing.T) {
	out := loadTestChain(t).String()
	assert.Contains(t, out, "sixaxis")
	assert.Contains(t, out, "j5")
	assert.Contains(t, out, "revolute")
	assert.Contains(t, out, "-114.59")
}

func TestLoadChain(t *testing.T) {
	t.Run("urdf with flip override", func(t *testing.T) {
		chain, err := LoadChain("testdata/sixaxis.urdf", nil, []int{1})
		require.NoError(t, err)
		assert.Equal(t, 6, chain.NumActive())
		assert.Equal(t, []int{1}, chain.FlipJoints())
	})

	t.Run("built in", func(t *testing.T) {
		chain, err := LoadChain("", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "parol6", chain.Name())
		assert.Equal(t, 6, chain.NumActive())
	})

	t.Run("missing file falls back to mock", func(t *testing.T) {
		chain, err := LoadChain("testdata/missing.urdf", nil, nil)
		assert.Error(t, err)
		require.NotNil(t, chain)
		assert.True(t, chain.IsMock())
	})

	t.Run("mask mismatch falls back to mock", func(t *testing.T) {
		chain, err := LoadChain("testdata/sixaxis.urdf", []bool{true}, nil)
		assert.True(t, errors.Is(err, ErrJointCount))
		assert.True(t, chain.IsMock())
	})

	t.Run("unknown extension", func(t *testing.T) {
		chain, err := LoadChain("testdata/sixaxis.urdf.bak", nil, nil)
		assert.Error(t, err)
		assert.True(t, chain.IsMock())
	})
}

func TestModelForwardMatchesChain(t *testing.T) {
	assertSame := func(t *testing.T, chain *Chain, active JointVector) {
		t.Helper()
		full, err := chain.Expand(active)
		require.NoError(t, err)
		want, err := chain.Forward(full)
		require.NoError(t, err)
		got, err := chain.ModelForward(active)
		require.NoError(t, err)
		assert.InDelta(t, 0, want.Position.Sub(got.Position).Norm(), 1e-9)
		for i := 0; i < 3; i++ {
			assert.InDelta(t, 0, want.Rotation.Column(i).Sub(got.Rotation.Column(i)).Norm(), 1e-8)
		}
	}

	t.Run("default chain", func(t *testing.T) {
		chain, err := DefaultChain(nil)
		require.NoError(t, err)
		for _, deg := range [][]float64{
			{0, 0, 0, 0, 0, 0},
			{0, -90, 180, 0, 0, 180},
			{10, -20, 160, 5, 40, 30},
			{-100, 120, -170, 100, -80, 170},
		} {
			assertSame(t, chain, FromDegrees(deg))
		}
	})

	t.Run("masked chain with a slide", func(t *testing.T) {
		limit := referenceframe.Limit{Min: -math.Pi, Max: math.Pi}
		links := []Link{
			{Name: "base", Type: Fixed, Origin: Pose{Position: r3.Vector{Z: 0.1}, Rotation: Identity()}},
			{Name: "a", Type: Revolute, Origin: Pose{Position: r3.Vector{X: 0.2}, Rotation: RotX(0.5)}, Axis: r3.Vector{Z: 1}, Limit: limit},
			{Name: "held", Type: Revolute, Origin: Pose{Position: r3.Vector{Y: 0.05}, Rotation: Identity()}, Axis: r3.Vector{Y: 1}, Limit: limit},
			{
				Name: "slide", Type: Prismatic, Origin: Pose{Position: r3.Vector{X: 0.1}, Rotation: RotZ(-math.Pi / 2)},
				Axis: r3.Vector{X: 1}, Limit: referenceframe.Limit{Min: -0.1, Max: 0.1},
			},
			{Name: "tip", Type: Fixed, Origin: Pose{Position: r3.Vector{Z: 0.03}, Rotation: RotX(math.Pi)}},
		}
		chain, err := NewChain("masked", links, []bool{false, true, false, true, false})
		require.NoError(t, err)
		require.NotNil(t, chain.Model())
		assert.Len(t, chain.Model().DoF(), 2)
		assertSame(t, chain, JointVector{0.3, 0.04})
		assertSame(t, chain, JointVector{-2.5, -0.07})
	})

	t.Run("mock chain", func(t *testing.T) {
		pose, err := MockChain().ModelForward(nil)
		require.NoError(t, err)
		assert.Equal(t, IdentityPose(), pose)
	})

	t.Run("wrong length", func(t *testing.T) {
		chain, err := DefaultChain(nil)
		require.NoError(t, err)
		_, err = chain.ModelForward(JointVector{1})
		assert.True(t, errors.Is(err, ErrJointCount))
	})
}
