package purchase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kasa-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	unitPcs uint = 1
	unitBox uint = 2
	unitKg  uint = 3
)

// stubResolver: (ürün, kaynak) -> katsayı. block doluysa çözüm bekletilir.
type stubResolver struct {
	mu      sync.Mutex
	factors map[[2]uint]float64
	calls   int
	err     error
	entered chan struct{}
	block   chan struct{}
}

func (s *stubResolver) Resolve(ctx context.Context, productID, src, tgt uint) (float64, error) {
	s.mu.Lock()
	s.calls++
	entered, block, err := s.entered, s.block, s.err
	f, ok := s.factors[[2]uint{productID, src}]
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return 0, err
	}
	if src == tgt || !ok {
		return 1, nil
	}
	return f, nil
}

func (s *stubResolver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func cola() models.Product {
	return models.Product{ID: 10, Name: "Kola", BaseUnitID: unitPcs}
}

func water() models.Product {
	return models.Product{ID: 20, Name: "Su", BaseUnitID: unitPcs}
}

func newStub() *stubResolver {
	return &stubResolver{factors: map[[2]uint]float64{
		{10, unitBox}: 12,
		{20, unitBox}: 6,
	}}
}

func TestForm_AddRowDefaults(t *testing.T) {
	f := NewForm(newStub())
	row := f.AddRow()

	assert.NotEmpty(t, row.ID)
	assert.Equal(t, StateNoProduct, row.State)
	assert.Equal(t, 1.0, row.Quantity)
	assert.Equal(t, 0.0, row.UnitCost)
	assert.Equal(t, 1.0, row.ConversionFactor)
	assert.Equal(t, 0.0, row.TotalCost)
	assert.Equal(t, 1, f.Len())
}

func TestForm_BoxToPiecesScenario(t *testing.T) {
	res := newStub()
	f := NewForm(res)
	row := f.AddRow()

	line, err := f.AssignProduct(row.ID, cola())
	require.NoError(t, err)
	assert.Equal(t, StateProductSelected, line.State)
	assert.Equal(t, unitPcs, line.PurchaseUnitID)
	assert.Equal(t, 1.0, line.ConversionFactor)

	line, err = f.SelectUnit(context.Background(), row.ID, unitBox)
	require.NoError(t, err)
	assert.Equal(t, StateUnitOverridden, line.State)
	assert.Equal(t, 12.0, line.ConversionFactor)

	_, err = f.SetQuantity(row.ID, 2)
	require.NoError(t, err)
	line, err = f.SetUnitCost(row.ID, 1000)
	require.NoError(t, err)

	assert.Equal(t, 24000.0, line.TotalCost)
	assert.Equal(t, 24000.0, f.Total())
}

func TestForm_QuantityChangeDoesNotResolve(t *testing.T) {
	res := &stubResolver{factors: map[[2]uint]float64{{10, unitKg}: 2}}
	f := NewForm(res)
	row := f.AddRow()
	_, err := f.AssignProduct(row.ID, cola())
	require.NoError(t, err)
	_, err = f.SelectUnit(context.Background(), row.ID, unitKg)
	require.NoError(t, err)
	_, err = f.SetUnitCost(row.ID, 1000)
	require.NoError(t, err)

	line, err := f.SetQuantity(row.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, line.TotalCost)

	line, err = f.SetQuantity(row.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, line.TotalCost)
	assert.Equal(t, 1, res.Calls())
}

func TestForm_AssignProductResetsUnit(t *testing.T) {
	f := NewForm(newStub())
	row := f.AddRow()
	_, err := f.AssignProduct(row.ID, cola())
	require.NoError(t, err)
	_, err = f.SelectUnit(context.Background(), row.ID, unitBox)
	require.NoError(t, err)

	line, err := f.AssignProduct(row.ID, water())
	require.NoError(t, err)
	assert.Equal(t, StateProductSelected, line.State)
	assert.Equal(t, uint(20), line.ProductID)
	assert.Equal(t, unitPcs, line.PurchaseUnitID)
	assert.Equal(t, 1.0, line.ConversionFactor)
}

func TestForm_SelectUnitWithoutProduct(t *testing.T) {
	res := newStub()
	f := NewForm(res)
	row := f.AddRow()

	_, err := f.SelectUnit(context.Background(), row.ID, unitBox)
	assert.ErrorIs(t, err, ErrNoProduct)
	assert.Equal(t, 0, res.Calls())
}

func TestForm_UnknownRow(t *testing.T) {
	f := NewForm(newStub())

	_, err := f.AssignProduct("yok", cola())
	assert.ErrorIs(t, err, ErrRowNotFound)
	_, err = f.SetQuantity("yok", 1)
	assert.ErrorIs(t, err, ErrRowNotFound)
	_, err = f.SelectUnit(context.Background(), "yok", unitBox)
	assert.ErrorIs(t, err, ErrRowNotFound)
	assert.ErrorIs(t, f.RemoveRow("yok"), ErrRowNotFound)
}

func TestForm_MutationsTouchOnlyAddressedRow(t *testing.T) {
	f := NewForm(newStub())
	a := f.AddRow()
	b := f.AddRow()
	_, err := f.AssignProduct(a.ID, cola())
	require.NoError(t, err)
	_, err = f.AssignProduct(b.ID, water())
	require.NoError(t, err)
	_, err = f.SetUnitCost(b.ID, 50)
	require.NoError(t, err)
	before, err := f.Row(b.ID)
	require.NoError(t, err)

	_, err = f.SelectUnit(context.Background(), a.ID, unitBox)
	require.NoError(t, err)
	_, err = f.SetQuantity(a.ID, 7)
	require.NoError(t, err)

	after, err := f.Row(b.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestForm_RemoveRowKeepsOrder(t *testing.T) {
	f := NewForm(newStub())
	a := f.AddRow()
	b := f.AddRow()
	c := f.AddRow()

	require.NoError(t, f.RemoveRow(b.ID))

	rows := f.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, a.ID, rows[0].ID)
	assert.Equal(t, c.ID, rows[1].ID)
}

func TestForm_RowsReturnsCopy(t *testing.T) {
	f := NewForm(newStub())
	row := f.AddRow()

	rows := f.Rows()
	rows[0].Quantity = 99

	got, err := f.Row(row.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Quantity)
}

func TestForm_StaleResolutionDiscarded(t *testing.T) {
	res := newStub()
	res.entered = make(chan struct{})
	res.block = make(chan struct{})
	f := NewForm(res)
	row := f.AddRow()
	_, err := f.AssignProduct(row.ID, cola())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.SelectUnit(context.Background(), row.ID, unitBox)
		errCh <- err
	}()
	<-res.entered
	blocked := res.block

	// Çözüm beklerken satıra başka ürün atanır
	res.mu.Lock()
	res.entered, res.block = nil, nil
	res.mu.Unlock()
	_, err = f.AssignProduct(row.ID, water())
	require.NoError(t, err)

	close(blocked)
	assert.ErrorIs(t, <-errCh, ErrSuperseded)

	line, err := f.Row(row.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(20), line.ProductID)
	assert.Equal(t, 1.0, line.ConversionFactor)
	assert.Equal(t, StateProductSelected, line.State)
}

func TestForm_LaterUnitSelectionWins(t *testing.T) {
	res := &stubResolver{factors: map[[2]uint]float64{
		{10, unitBox}: 12,
		{10, unitKg}:  2,
	}}
	res.entered = make(chan struct{})
	res.block = make(chan struct{})
	f := NewForm(res)
	row := f.AddRow()
	_, err := f.AssignProduct(row.ID, cola())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.SelectUnit(context.Background(), row.ID, unitBox)
		errCh <- err
	}()
	<-res.entered
	blocked := res.block

	res.mu.Lock()
	res.entered, res.block = nil, nil
	res.mu.Unlock()
	line, err := f.SelectUnit(context.Background(), row.ID, unitKg)
	require.NoError(t, err)
	assert.Equal(t, 2.0, line.ConversionFactor)

	close(blocked)
	assert.ErrorIs(t, <-errCh, ErrSuperseded)

	line, err = f.Row(row.ID)
	require.NoError(t, err)
	assert.Equal(t, unitKg, line.PurchaseUnitID)
	assert.Equal(t, 2.0, line.ConversionFactor)
}

func TestForm_ResolverErrorLeavesRowUnchanged(t *testing.T) {
	res := newStub()
	f := NewForm(res)
	row := f.AddRow()
	_, err := f.AssignProduct(row.ID, cola())
	require.NoError(t, err)

	res.err = errors.New("db kapalı")
	_, err = f.SelectUnit(context.Background(), row.ID, unitBox)
	require.Error(t, err)

	line, err := f.Row(row.ID)
	require.NoError(t, err)
	assert.Equal(t, unitPcs, line.PurchaseUnitID)
	assert.Equal(t, 1.0, line.ConversionFactor)
}

func TestForm_TotalSumsRoundedLines(t *testing.T) {
	f := NewForm(&stubResolver{})
	for i := 0; i < 2; i++ {
		row := f.AddRow()
		_, err := f.AssignProduct(row.ID, cola())
		require.NoError(t, err)
		_, err = f.SetUnitCost(row.ID, 1.005)
		require.NoError(t, err)
	}

	// 1.005 + 1.005 = 2.01 olurdu, kalemler ayrı ayrı 1.01'e yuvarlanır
	assert.Equal(t, 2.02, f.Total())
}
