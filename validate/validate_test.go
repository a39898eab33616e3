package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/stageflow/pipeline"
)

type order struct {
	ID       string  `json:"id" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Quantity int     `json:"quantity" validate:"gte=1"`
	Price    float64 `validate:"gt=0"`
}

func TestStruct(t *testing.T) {
	res := Struct().Validate(order{ID: "o1", Email: "a@example.com", Quantity: 1, Price: 2})
	require.NoError(t, res.Err)

	res = Struct().Validate(&order{Email: "nope", Price: 1})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrInvalid)

	var verr *Error
	require.True(t, errors.As(res.Err, &verr))
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Rule
	}
	assert.Equal(t, map[string]string{"id": "required", "email": "email", "quantity": "gte"}, fields)
	assert.Contains(t, res.Err.Error(), "id: is required")

	res = Struct().Validate(42)
	assert.ErrorIs(t, res.Err, ErrInvalid)
}

func TestVarAndChain(t *testing.T) {
	double := Func(func(v any) Result { return Result{Value: v.(int) * 2} })
	v := Chain(Var("gte=0"), double, Var("lte=10"))

	res := v.Validate(4)
	require.NoError(t, res.Err)
	assert.Equal(t, 8, res.Value)

	res = v.Validate(-1)
	assert.ErrorIs(t, res.Err, ErrInvalid)

	res = v.Validate(6)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "must be at most 10")
}

func TestHandler(t *testing.T) {
	d, err := pipeline.New("orders", []pipeline.StageSpec{
		{Name: "check", Handler: Handler(Struct())},
	}, pipeline.WithRegistry(nil))
	require.NoError(t, err)

	good := order{ID: "o1", Email: "a@example.com", Quantity: 2, Price: 1}
	res, err := d.Flow(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, good, res.Value())

	_, err = d.Flow(context.Background(), order{})
	assert.ErrorIs(t, err, ErrInvalid)

	loading := Func(func(v any) Result { return Result{Value: v, Loading: true} })
	_, err = Handler(loading)(context.Background(), 1)
	assert.ErrorIs(t, err, ErrPending)
}

func TestInterceptor(t *testing.T) {
	loading := true
	remote := Func(func(v any) Result {
		if loading {
			return Result{Value: v, Loading: true}
		}
		if v.(int) < 0 {
			return Result{Value: v, Err: errors.New("negative")}
		}
		return Result{Value: v}
	})
	d, err := pipeline.New("numbers", []pipeline.StageSpec{
		{Handler: func(v any) any { return v.(int) * 10 }, Interceptors: []pipeline.Interceptor{Interceptor("remote", remote)}},
	}, pipeline.WithRegistry(nil))
	require.NoError(t, err)

	res, err := d.Flow(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Value(), "skipped while loading")

	loading = false
	res, err = d.Flow(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Value())

	_, err = d.Flow(context.Background(), -3)
	assert.EqualError(t, err, `stage "1-flow": negative`)
}
