package pipeline

// Built-in distortion-model configurations. The spline field model places
// its knots on a subsampled grid: the even preset subsamples aggressively,
// which assumes all three matrix dimensions are even, while the odd preset
// never subsamples and stays numerically stable on odd grids.

const presetEven = `# distortion-model preset for even matrix dimensions
# warp resolution (knot spacing) in mm, per level
--warpres=20,16,14,12,10,6,4,4,4
# subsampling level, per level
--subsamp=2,2,2,2,2,1,1,1,1
# FWHM of smoothing in mm, per level
--fwhm=8,6,4,3,3,2,1,0,0
# maximum iterations, per level
--miter=5,5,5,5,5,10,10,20,20
# weight of regularisation, per level
--lambda=0.005,0.001,0.0001,0.000015,0.000005,0.0000005,0.00000005,0.0000000005,0.00000000001
# estimate movements
--estmov=1,1,1,1,1,0,0,0,0
# minimisation method (0=LM, 1=SCG)
--minmet=0,0,0,0,0,1,1,1,1
# quadratic or cubic splines
--splineorder=3
# precision for calculations
--numprec=double
# linear or spline interpolation
--interp=spline
# scale images to common mean
--scale=1
`

const presetOdd = `# distortion-model preset for odd matrix dimensions
# warp resolution (knot spacing) in mm, per level
--warpres=20,16,14,12,10,6,4,4,4
# no subsampling: knot placement must not assume even dimensions
--subsamp=1,1,1,1,1,1,1,1,1
# FWHM of smoothing in mm, per level
--fwhm=8,6,4,3,3,2,1,0,0
# maximum iterations, per level
--miter=5,5,5,5,5,10,10,20,20
# weight of regularisation, per level
--lambda=0.0005,0.0001,0.00001,0.0000015,0.0000005,0.00000005,0.000000005,0.00000000005,0.000000000001
# estimate movements
--estmov=1,1,1,1,1,0,0,0,0
# minimisation method (0=LM, 1=SCG)
--minmet=0,0,0,0,0,1,1,1,1
# quadratic or cubic splines
--splineorder=3
# precision for calculations
--numprec=double
# linear or spline interpolation
--interp=spline
# scale images to common mean
--scale=1
`
